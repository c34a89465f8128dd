package model

import "time"

// 用户角色，与前端徽章一一对应
const (
	RoleModeracja = "Moderacja"
	RoleSponsor   = "Sponsor"
)

// User 结构体表示用户模型
type User struct {
	ID           string    `json:"id"` // 账户ID，注册时生成
	Email        string    `json:"email"`
	Nick         string    `json:"nick"` // 唯一昵称，注册时统一转为小写，作为帖子的外键
	PasswordHash string    `json:"-"`    // 密码哈希不应在JSON中暴露
	Avatar       string    `json:"avatar"`
	Description  string    `json:"description"`
	Role         *string   `json:"role"` // Moderacja / Sponsor / null
	JoinedAt     time.Time `json:"joined_at"`
	IsOnline     bool      `json:"is_online"`
	IsVerified   bool      `json:"is_verified"`
}

// IsValidRole 检查角色值是否合法，空字符串表示无角色
func IsValidRole(role string) bool {
	return role == "" || role == RoleModeracja || role == RoleSponsor
}
