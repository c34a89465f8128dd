package interfaces

import "github.com/newbialywhodis/barcapl/internal/model"

// LikeRepository 接口定义了点赞仓库应该实现的方法。
// Find 在点赞不存在时返回 (nil, nil) 而不是错误。
type LikeRepository interface {
	Find(postID, userID string) (*model.Like, error)
	Add(postID, userID string) error
	Remove(postID, userID string) error
	ListUserIDs(postID string) ([]string, error)
}
