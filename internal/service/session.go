package service

import (
	"errors"
	"strings"

	"sharesphere/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Session 当前登录用户的身份，显式传入每个业务调用
type Session struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Result 对外的 (success, message) 结果
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResultOf 将错误转换为 Result，err 为 nil 时使用 okMsg
func ResultOf(err error, okMsg string) Result {
	if err == nil {
		return Result{Success: true, Message: okMsg}
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		// 内部错误不向外暴露细节
		return Result{Success: false, Message: "internal error"}
	}
	return Result{Success: false, Message: err.Error()}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	// 用户名和群组名用作目录名的一部分
	_ = v.RegisterValidation("safename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name == strings.TrimSpace(name) &&
			!strings.HasPrefix(name, ".") &&
			!strings.ContainsAny(name, `/\`)
	})
	return v
}

// 校验请求结构体，失败时返回 ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation("invalid %s: failed on '%s'", strings.ToLower(fe.Field()), fe.Tag())
	}
	return apperr.Validation("invalid input: %v", err)
}
