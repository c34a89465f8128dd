package user

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/config"
	"github.com/newbialywhodis/barcapl/internal/errors"
	"github.com/newbialywhodis/barcapl/internal/service"
	"github.com/newbialywhodis/barcapl/internal/storage"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// ProfileHandler 处理当前登录用户的资料请求
type ProfileHandler struct {
	userService service.UserServiceInterface
	storage     storage.Storage
}

func NewProfileHandler(userService service.UserServiceInterface, storage storage.Storage) *ProfileHandler {
	return &ProfileHandler{userService, storage}
}

// GetProfile 返回当前登录用户的资料
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.HandleError(c, appErr)
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "获取用户资料失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"user": user}, "")
}

// UpdateProfile 更新当前登录用户的个人描述
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetString("user_id")

	var updateData struct {
		Description string `json:"description"`
	}

	if err := c.ShouldBindJSON(&updateData); err != nil {
		util.Logger.Warn("更新用户资料失败，无效的请求数据", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	user, err := h.userService.UpdateDescription(userID, updateData.Description)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.HandleError(c, appErr)
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "更新用户资料失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"user": user}, "资料更新成功")
}

// UploadAvatar 上传当前登录用户的头像
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID := c.GetString("user_id")

	file, err := c.FormFile("avatar")
	if err != nil {
		util.Logger.Error("获取上传文件失败", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrBadRequest, "无法获取上传文件", err))
		return
	}

	if !util.IsImageFilename(file.Filename) {
		errors.HandleError(c, errors.New(errors.ErrValidation, "头像必须是图片文件"))
		return
	}

	filename := util.GenerateUniqueFilename(file.Filename)
	path := fmt.Sprintf("avatars/%s/%s", userID, filename)

	avatarPath, err := h.storage.UploadFile(file, path)
	if err != nil {
		util.Logger.Error("头像上传失败", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "头像上传失败", err))
		return
	}

	avatarURL := avatarPath
	if config.AppConfig.StorageBackend == "" || config.AppConfig.StorageBackend == "local" {
		avatarURL = fmt.Sprintf("%s/uploads/%s", config.AppConfig.BackendURL, avatarPath)
	}

	if err := h.userService.UpdateAvatar(userID, avatarURL); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "更新头像失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"avatar": avatarURL}, "头像更新成功")
}
