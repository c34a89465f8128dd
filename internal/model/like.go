package model

import "time"

// Like 结构体表示点赞，(PostID, UserID) 组合唯一
type Like struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
