package interfaces

import "github.com/newbialywhodis/barcapl/internal/model"

// UserRepository 接口定义了用户仓库应该实现的方法。
// 单行查询在记录不存在时返回 (nil, nil) 而不是错误。
type UserRepository interface {
	Upsert(user *model.User) error
	FindByID(id string) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	FindByNick(nick string) (*model.User, error)
	Update(user *model.User) error
	SetOnline(nick string, online bool) error
	FindPostsByAuthor(nick string, limit int) ([]*model.Post, error)
	Count() (int, error)
}
