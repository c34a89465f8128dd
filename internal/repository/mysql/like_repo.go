package mysql

import (
	"database/sql"
	"fmt"

	"github.com/newbialywhodis/barcapl/internal/model"
)

// likeRepository 实现了 LikeRepository 接口
type likeRepository struct {
	db *sql.DB
}

// NewLikeRepository 创建一个新的 likeRepository 实例
func NewLikeRepository(db *sql.DB) *likeRepository {
	return &likeRepository{db: db}
}

// Find 查找某个用户对某条帖子的点赞，不存在时返回 (nil, nil)
func (r *likeRepository) Find(postID, userID string) (*model.Like, error) {
	query := `SELECT post_id, user_id, created_at FROM likes WHERE post_id = ? AND user_id = ?`
	var like model.Like
	err := r.db.QueryRow(query, postID, userID).Scan(&like.PostID, &like.UserID, &like.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &like, nil
}

// Add 写入一条点赞，(post_id, user_id) 上有唯一索引
func (r *likeRepository) Add(postID, userID string) error {
	query := `INSERT IGNORE INTO likes (post_id, user_id) VALUES (?, ?)`
	_, err := r.db.Exec(query, postID, userID)
	if err != nil {
		return fmt.Errorf("写入点赞失败: %w", err)
	}
	return nil
}

// Remove 删除一条点赞
func (r *likeRepository) Remove(postID, userID string) error {
	query := `DELETE FROM likes WHERE post_id = ? AND user_id = ?`
	_, err := r.db.Exec(query, postID, userID)
	if err != nil {
		return fmt.Errorf("删除点赞失败: %w", err)
	}
	return nil
}

// ListUserIDs 返回某条帖子的全部点赞用户ID
func (r *likeRepository) ListUserIDs(postID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT user_id FROM likes WHERE post_id = ?`, postID)
	if err != nil {
		return nil, fmt.Errorf("查询点赞失败: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("扫描点赞数据失败: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}
