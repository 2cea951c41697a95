package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误码（对外的机器可读标识）
const (
	CodeUnauthenticated   = "Unauthenticated"
	CodeForbidden         = "Forbidden"
	CodeInvalidParameter  = "InvalidParameter"
	CodeInvalidReference  = "InvalidReference"
	CodeNotFound          = "NotFound"
	CodeRateLimitExceeded = "RateLimitExceeded"
	CodeInternal          = "Internal"
)

// Error 是所有对外错误的统一形态
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Envelope 错误响应信封 {error: {code, message, details}}
type Envelope struct {
	Error *Error `json:"error"`
}

// HTTPStatus 将错误码映射到 HTTP 状态码
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidParameter, CodeInvalidReference:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As 提取 *Error；非本包错误返回 nil, false
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Unauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

func Forbidden(scope string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: "insufficient scope for this operation",
		Details: map[string]interface{}{"required_scope": scope},
	}
}

// InvalidParameter 参数错误，details 固定为 {parameter, provided_value, expected_format}
func InvalidParameter(parameter, providedValue, expectedFormat string) *Error {
	return &Error{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter %q", parameter),
		Details: map[string]interface{}{
			"parameter":       parameter,
			"provided_value":  providedValue,
			"expected_format": expectedFormat,
		},
	}
}

// InvalidReference 引用了不存在的实体
func InvalidReference(parameter string, providedValue interface{}) *Error {
	return &Error{
		Code:    CodeInvalidReference,
		Message: fmt.Sprintf("%s references a non-existent entity", parameter),
		Details: map[string]interface{}{
			"parameter":      parameter,
			"provided_value": providedValue,
		},
	}
}

func NotFound(resource string, id int64) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// RateLimitExceeded 限流错误；reset 为窗口重置的 Unix 时间戳
func RateLimitExceeded(limit int, reset int64) *Error {
	return &Error{
		Code:    CodeRateLimitExceeded,
		Message: "rate limit exceeded",
		Details: map[string]interface{}{
			"limit": limit,
			"reset": reset,
		},
	}
}

// Internal 对调用方不透出内部细节
func Internal() *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "internal server error",
	}
}
