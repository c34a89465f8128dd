package model

import "time"

// Post 结构体表示帖子模型，帖子创建后不可修改
type Post struct {
	ID        string    `json:"id"`     // 客户端生成的随机ID
	Author    string    `json:"author"` // 作者昵称，而非账户ID
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedPost 是信息流中的帖子投影，附带点赞数和作者在线状态
type FeedPost struct {
	Post
	LikesCount int        `json:"likes_count"`
	LikerIDs   []string   `json:"-"` // 点赞用户ID集合，仅用于在读取时推导 IsLiked
	IsLiked    bool       `json:"is_liked"`
	IsOnline   bool       `json:"is_online"`
	Role       *string    `json:"role"`
	JoinedAt   *time.Time `json:"joined_at"`
}
