package mysql

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/internal/model"
	"github.com/newbialywhodis/barcapl/internal/realtime"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// postRepository 实现了 PostRepository 接口
type postRepository struct {
	db   *sql.DB
	feed *realtime.Broker
}

// NewPostRepository 创建一个新的 postRepository 实例
func NewPostRepository(db *sql.DB, feed *realtime.Broker) *postRepository {
	return &postRepository{db: db, feed: feed}
}

// Create 写入一条新帖子并发布变更通知
func (r *postRepository) Create(post *model.Post) error {
	query := `INSERT INTO posts (id, author, content, timestamp) VALUES (?, ?, ?, ?)`
	_, err := r.db.Exec(query, post.ID, post.Author, post.Content, post.Timestamp)
	if err != nil {
		util.Logger.Error("创建帖子失败",
			zap.Error(err),
			zap.String("post_id", post.ID),
			zap.String("author", post.Author))
		return fmt.Errorf("创建帖子失败: %w", err)
	}

	r.feed.Publish(realtime.TablePosts, realtime.OpInsert, post)
	return nil
}

// FindByID 通过ID查找帖子
func (r *postRepository) FindByID(id string) (*model.Post, error) {
	query := `SELECT id, author, content, timestamp FROM posts WHERE id = ?`
	var post model.Post
	err := r.db.QueryRow(query, id).Scan(&post.ID, &post.Author, &post.Content, &post.Timestamp)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// FindAll 返回全部帖子，按时间倒序
func (r *postRepository) FindAll() ([]*model.Post, error) {
	query := `SELECT id, author, content, timestamp FROM posts ORDER BY timestamp DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("查询帖子列表失败: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(&post.ID, &post.Author, &post.Content, &post.Timestamp); err != nil {
			return nil, fmt.Errorf("扫描帖子数据失败: %w", err)
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

// Count 返回帖子总数
func (r *postRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
