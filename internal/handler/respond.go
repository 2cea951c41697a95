package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskhub/internal/apperr"
)

// writeError 统一错误出口：领域错误按码映射状态，其余一律
// 记日志并返回不透明的 Internal
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		c.JSON(apperr.HTTPStatus(e), apperr.Envelope{Error: e})
		return
	}

	logger.Error("Unhandled internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(apperr.HTTPStatus(err), apperr.Envelope{Error: apperr.Internal()})
}

func invalidBody() *apperr.Error {
	return &apperr.Error{
		Code:    apperr.CodeInvalidParameter,
		Message: "request body is not a valid JSON object",
	}
}

func parsePathID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.InvalidParameter("id", raw, "positive integer")
	}
	return id, nil
}

// parsePageQueryInt 解析分页参数。缺省返回 0 交由服务层套默认值；
// 显式给出的值必须为正，"?page=0" 不等于没传。
func parsePageQueryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperr.InvalidParameter(name, raw, "positive integer")
	}
	return v, nil
}

func parseQueryInt64Ptr(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.InvalidParameter(name, raw, "integer")
	}
	return &v, nil
}
