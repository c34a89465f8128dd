package interfaces

import "github.com/newbialywhodis/barcapl/internal/model"

// PostRepository 接口定义了帖子仓库应该实现的方法，帖子不可修改也不可删除
type PostRepository interface {
	Create(post *model.Post) error
	FindByID(id string) (*model.Post, error)
	FindAll() ([]*model.Post, error)
	Count() (int, error)
}
