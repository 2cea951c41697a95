package auth

import "github.com/gin-gonic/gin"

const ginContextKey = "principal"

// SetPrincipal stores the authenticated principal so handlers can use it.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(ginContextKey, p)
}

// PrincipalFromContext returns the principal set by the auth middleware, or nil.
func PrincipalFromContext(c *gin.Context) *Principal {
	v, ok := c.Get(ginContextKey)
	if !ok {
		return nil
	}
	p, ok := v.(*Principal)
	if !ok {
		return nil
	}
	return p
}
