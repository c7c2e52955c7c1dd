package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindInternal         Kind = "ERR_INTERNAL"
	KindNotFound         Kind = "ERR_NOT_FOUND"
	KindDuplicate        Kind = "ERR_DUPLICATE"
	KindPermissionDenied Kind = "ERR_PERMISSION_DENIED"
	KindIO               Kind = "ERR_IO"
	KindValidation       Kind = "ERR_VALIDATION"
)

// Error 带类别的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个新的业务错误
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装一个已有错误，msg 为对外展示的消息
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Duplicate(format string, args ...interface{}) *Error {
	return New(KindDuplicate, format, args...)
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return New(KindPermissionDenied, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func IO(err error, msg string) *Error {
	return Wrap(err, KindIO, msg)
}

func Internal(err error, msg string) *Error {
	return Wrap(err, KindInternal, msg)
}

// KindOf 返回错误链中第一个业务错误的类别，非业务错误视为 KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
