package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/internal/errors"
	"github.com/newbialywhodis/barcapl/internal/service"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// ModeratorMiddleware 确保只有 Moderacja 角色可以访问某些路由
func ModeratorMiddleware(userService service.UserServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			errors.HandleError(c, errors.New(errors.ErrUnauthorized, "需要认证"))
			c.Abort()
			return
		}

		isModerator, err := userService.IsModerator(userID)
		if err != nil || !isModerator {
			util.Logger.Warn("非版主访问受限路由",
				zap.String("user_id", userID),
				zap.Error(err))
			errors.HandleError(c, errors.New(errors.ErrForbidden, "需要版主权限"))
			c.Abort()
			return
		}

		c.Next()
	}
}
