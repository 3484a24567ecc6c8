package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误大类，决定调用方能否重试以及 HTTP 状态码
type Kind int

const (
	KindNotFound   Kind = iota + 1 // 资源不存在 (SKU/用户/活动/券)
	KindConflict                   // 状态冲突 (库存不足、已领取、预占过期...)
	KindValidation                 // 参数越界
	KindExhausted                  // 资源耗尽 (余额不足、库存上限)
	KindTransient                  // 锁等待超时，可重试
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindExhausted:
		return "exhausted"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error 领域错误。Code 在整个系统内唯一，errors.Is 按 Code 比较。
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Detail  string
	cause   error
}

func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is 同一 Code 视为同一错误，便于对带 Detail 的副本做匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回附带上下文信息的副本，原哨兵错误不被修改
func (e *Error) WithDetail(format string, args ...interface{}) *Error {
	cp := *e
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap 返回包裹底层错误的副本
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// As 提取错误链上的第一个 *Error
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误大类，非领域错误返回 0
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// IsRetryable 仅 Transient 错误允许自动重试
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
