package grams

import (
	"errors"
	"strings"

	"github.com/anoixa/grammable/database/models"
)

var (
	// ErrNotFound id 无法解析或记录不存在
	ErrNotFound = errors.New("gram not found")

	// ErrUnauthorized 当前用户不是 gram 的作者
	ErrUnauthorized = errors.New("not authorized to modify this gram")
)

// ValidationError 字段校验失败，携带所有违规项
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.String())
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func newValidationError(errs ...models.FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// AsValidationError 取出错误链中的校验错误
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
