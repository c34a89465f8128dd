package util

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// 昵称作为帖子的外键，只允许字母、数字和下划线，注册时会统一转为小写
var nickPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// ValidateNick 验证昵称格式是否合法
func ValidateNick(fl validator.FieldLevel) bool {
	nick, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return nickPattern.MatchString(nick)
}
