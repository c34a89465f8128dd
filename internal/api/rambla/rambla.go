package rambla

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/internal/errors"
	"github.com/newbialywhodis/barcapl/internal/service"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// 个人页默认展示的最近帖子数
const profilePostLimit = 5

// FeedHandler 处理信息流相关的HTTP请求
type FeedHandler struct {
	feedService *service.FeedService
	userService service.UserServiceInterface
}

// NewFeedHandler 创建一个新的 FeedHandler 实例
func NewFeedHandler(feedService *service.FeedService, userService service.UserServiceInterface) *FeedHandler {
	return &FeedHandler{feedService, userService}
}

// GetFeed 返回当前的信息流快照。登录用户会拿到按自己推导的
// 点赞标志，游客一律为未点赞。
func (h *FeedHandler) GetFeed(c *gin.Context) {
	viewerID := c.GetString("user_id")

	errors.HandleSuccess(c, gin.H{
		"posts":  h.feedService.Snapshot(viewerID),
		"unread": h.feedService.UnreadCount(),
	}, "")
}

// RefreshFeed 用户显式触发的全量刷新，同时清零未读计数
func (h *FeedHandler) RefreshFeed(c *gin.Context) {
	viewerID := c.GetString("user_id")

	if err := h.feedService.RefreshAndMarkRead(c.Request.Context()); err != nil {
		util.Logger.Error("刷新信息流失败", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "刷新信息流失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{
		"posts":  h.feedService.Snapshot(viewerID),
		"unread": h.feedService.UnreadCount(),
	}, "")
}

// GetUnread 返回自上次显式刷新以来到达的新帖数
func (h *FeedHandler) GetUnread(c *gin.Context) {
	errors.HandleSuccess(c, gin.H{"unread": h.feedService.UnreadCount()}, "")
}

// CreatePost 发布一条新帖子
func (h *FeedHandler) CreatePost(c *gin.Context) {
	userID := c.GetString("user_id")

	var postData struct {
		Content string `json:"content" binding:"required,max=500"`
	}

	if err := c.ShouldBindJSON(&postData); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.HandleError(c, appErr)
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "查询用户失败", err))
		return
	}

	if err := h.feedService.SubmitPost(c.Request.Context(), user.Nick, postData.Content); err != nil {
		util.Logger.Error("发布帖子失败",
			zap.Error(err),
			zap.String("nick", user.Nick))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "发布帖子失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{
		"posts": h.feedService.Snapshot(userID),
	}, "发布成功")
}

// ToggleLike 切换当前用户对某条帖子的点赞状态
func (h *FeedHandler) ToggleLike(c *gin.Context) {
	userID := c.GetString("user_id")
	postID := c.Param("id")

	if postID == "" {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "缺少帖子ID"))
		return
	}

	if err := h.feedService.ToggleLike(c.Request.Context(), postID, userID); err != nil {
		util.Logger.Error("切换点赞失败",
			zap.Error(err),
			zap.String("post_id", postID))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "切换点赞失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{
		"posts": h.feedService.Snapshot(userID),
	}, "")
}

// GetUserProfile 返回某个用户的个人页：用户信息加最近的帖子
func (h *FeedHandler) GetUserProfile(c *gin.Context) {
	nick := c.Param("nick")
	if nick == "" {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "缺少昵称"))
		return
	}

	user, posts, err := h.userService.GetUserProfile(nick, profilePostLimit)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.HandleError(c, appErr)
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "查询用户资料失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{
		"user":  user,
		"posts": posts,
	}, "")
}
