package mysql

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/internal/model"
	"github.com/newbialywhodis/barcapl/internal/realtime"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// userRepository 实现了 UserRepository 接口
type userRepository struct {
	db   *sql.DB
	feed *realtime.Broker
}

// NewUserRepository 创建一个新的 userRepository 实例
func NewUserRepository(db *sql.DB, feed *realtime.Broker) *userRepository {
	return &userRepository{db: db, feed: feed}
}

const userColumns = `id, email, nick, password_hash, avatar, description, role, joined_at, is_online, is_verified`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Nick, &user.PasswordHash, &user.Avatar,
		&user.Description, &user.Role, &user.JoinedAt, &user.IsOnline, &user.IsVerified,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert 按账户ID写入用户，已存在则覆盖资料字段
func (r *userRepository) Upsert(user *model.User) error {
	query := `INSERT INTO users (` + userColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON DUPLICATE KEY UPDATE
                  email = VALUES(email), nick = VALUES(nick),
                  avatar = VALUES(avatar), description = VALUES(description),
                  role = VALUES(role), is_online = VALUES(is_online)`
	_, err := r.db.Exec(query,
		user.ID, user.Email, user.Nick, user.PasswordHash, user.Avatar,
		user.Description, user.Role, user.JoinedAt, user.IsOnline, user.IsVerified)
	if err != nil {
		util.Logger.Error("写入用户失败", zap.Error(err), zap.String("nick", user.Nick))
		return fmt.Errorf("写入用户失败: %w", err)
	}
	return nil
}

// FindByID 通过账户ID查找用户
func (r *userRepository) FindByID(id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// FindByEmail 通过邮箱查找用户
func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(r.db.QueryRow(query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// FindByNick 通过昵称查找用户
func (r *userRepository) FindByNick(nick string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nick = ?`
	user, err := scanUser(r.db.QueryRow(query, nick))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Update 更新用户资料并发布变更通知
func (r *userRepository) Update(user *model.User) error {
	_, err := r.db.Exec(`
		UPDATE users
		SET email = ?, nick = ?, avatar = ?, description = ?, role = ?, is_online = ?, is_verified = ?
		WHERE id = ?`,
		user.Email, user.Nick, user.Avatar, user.Description, user.Role,
		user.IsOnline, user.IsVerified, user.ID)
	if err != nil {
		return err
	}
	r.feed.Publish(realtime.TableUsers, realtime.OpUpdate, user)
	return nil
}

// SetOnline 更新用户的在线标志并发布变更通知
func (r *userRepository) SetOnline(nick string, online bool) error {
	_, err := r.db.Exec(`UPDATE users SET is_online = ? WHERE nick = ?`, online, nick)
	if err != nil {
		util.Logger.Error("更新在线状态失败",
			zap.Error(err),
			zap.String("nick", nick),
			zap.Bool("online", online))
		return fmt.Errorf("更新在线状态失败: %w", err)
	}

	user, err := r.FindByNick(nick)
	if err != nil || user == nil {
		// 通知携带最小行，足够订阅方按昵称更新在线标志
		user = &model.User{Nick: nick, IsOnline: online}
	}
	r.feed.Publish(realtime.TableUsers, realtime.OpUpdate, user)
	return nil
}

// FindPostsByAuthor 返回某个作者最近的帖子
func (r *userRepository) FindPostsByAuthor(nick string, limit int) ([]*model.Post, error) {
	query := `SELECT id, author, content, timestamp FROM posts
              WHERE author = ? ORDER BY timestamp DESC LIMIT ?`
	rows, err := r.db.Query(query, nick, limit)
	if err != nil {
		return nil, fmt.Errorf("查询用户帖子失败: %w", err)
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

// Count 返回用户总数
func (r *userRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
