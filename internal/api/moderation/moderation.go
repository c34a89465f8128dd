package moderation

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/internal/errors"
	"github.com/newbialywhodis/barcapl/internal/service"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// ModerationHandler 处理版主操作相关的HTTP请求
type ModerationHandler struct {
	userService  service.UserServiceInterface
	statsService *service.StatsService
}

// NewModerationHandler 创建一个新的 ModerationHandler 实例
func NewModerationHandler(userService service.UserServiceInterface, statsService *service.StatsService) *ModerationHandler {
	return &ModerationHandler{userService, statsService}
}

// UpdateUserRole 更新某个用户的角色。空角色表示撤销徽章。
func (h *ModerationHandler) UpdateUserRole(c *gin.Context) {
	targetID := c.Param("id")

	var roleData struct {
		Role string `json:"role"`
	}

	if err := c.ShouldBindJSON(&roleData); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	if err := h.userService.UpdateUserRole(targetID, roleData.Role); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.HandleError(c, appErr)
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "更新角色失败", err))
		return
	}

	util.Logger.Info("用户角色已更新",
		zap.String("target", targetID),
		zap.String("role", roleData.Role),
		zap.String("operator", c.GetString("user_id")))

	errors.HandleSuccess(c, nil, "角色更新成功")
}

// GetStats 返回论坛统计数据
func (h *ModerationHandler) GetStats(c *gin.Context) {
	stats, err := h.statsService.GetForumStats()
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "获取统计数据失败", err))
		return
	}
	errors.HandleSuccess(c, stats, "")
}
