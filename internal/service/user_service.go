package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/newbialywhodis/barcapl/internal/errors"
	"github.com/newbialywhodis/barcapl/internal/model"
	"github.com/newbialywhodis/barcapl/internal/repository/interfaces"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// UserService 处理用户相关的业务逻辑，同时负责把认证生命周期
// 映射到用户记录的在线标志上（登录置为在线，登出置为离线）
type UserService struct {
	userRepo     interfaces.UserRepository
	emailService *EmailService
	feedService  *FeedService // 认证状态变化后触发信息流刷新，可为 nil

	tokenBlacklist map[string]time.Time
	blacklistMutex sync.RWMutex
}

// NewUserService 创建一个新的 UserService 实例
func NewUserService(userRepo interfaces.UserRepository, feedService *FeedService) *UserService {
	return &UserService{
		userRepo:       userRepo,
		emailService:   NewEmailService(),
		feedService:    feedService,
		tokenBlacklist: make(map[string]time.Time),
	}
}

// IsEmailTaken 检查邮箱是否已被使用
func (s *UserService) IsEmailTaken(email string) (bool, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// IsNickTaken 检查昵称是否已被使用
func (s *UserService) IsNickTaken(nick string) (bool, error) {
	user, err := s.userRepo.FindByNick(nick)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Register 注册新用户。写入前先做防御性的唯一性检查，
// 以便返回字段级的校验错误而不是笼统的数据库错误。
// 昵称统一转为小写后作为帖子的外键使用。
func (s *UserService) Register(user *model.User, password string) error {
	user.Nick = strings.ToLower(user.Nick)

	// 检查邮箱是否已被使用
	emailTaken, err := s.IsEmailTaken(user.Email)
	if err != nil {
		return err
	}
	if emailTaken {
		return errors.New(errors.ErrEmailTaken, "该邮箱已被使用")
	}

	// 检查昵称是否已被使用
	nickTaken, err := s.IsNickTaken(user.Nick)
	if err != nil {
		return err
	}
	if nickTaken {
		return errors.New(errors.ErrNickTaken, "该昵称已被使用")
	}

	// 生成密码哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.ID = uuid.NewString()
	user.PasswordHash = string(hashedPassword)
	user.Role = nil
	user.JoinedAt = time.Now().UTC()

	if err := s.userRepo.Upsert(user); err != nil {
		return err
	}

	// 发送验证邮件，失败不影响注册
	if err := s.emailService.SendVerificationEmail(user.Email, user.Nick); err != nil {
		util.Logger.Error("发送验证邮件失败", zap.Error(err))
	}

	return nil
}

// Login 用户登录。成功后尽力把在线标志置为 true（失败只记录
// 日志），并触发一次信息流刷新以重算查看者相关字段。
func (s *UserService) Login(email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New(errors.ErrInvalidCredentials, "邮箱或密码不正确")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New(errors.ErrInvalidCredentials, "邮箱或密码不正确")
	}

	s.trackSession(user, true)

	util.Logger.Info("用户登录成功", zap.String("nick", user.Nick))
	return user, nil
}

// Logout 用户登出：令牌加入黑名单，在线标志尽力置为 false
func (s *UserService) Logout(userID, token string) error {
	s.blacklistMutex.Lock()
	s.tokenBlacklist[token] = time.Now().Add(24 * time.Hour) // 令牌在黑名单中保留24小时
	s.blacklistMutex.Unlock()

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New(errors.ErrUserNotFound, "用户不存在")
	}

	s.trackSession(user, false)

	util.Logger.Info("用户已登出", zap.String("nick", user.Nick))
	return nil
}

// trackSession 把认证状态变化镜像到用户记录的在线标志上。
// 写入是尽力而为的，失败只记录日志；随后触发信息流刷新。
// 注意：同一账户多开标签页时，关掉一个会把用户整体标记为离线，
// 这是沿用的已知限制。
func (s *UserService) trackSession(user *model.User, online bool) {
	if err := s.userRepo.SetOnline(user.Nick, online); err != nil {
		util.Logger.Error("镜像在线状态失败",
			zap.Error(err),
			zap.String("nick", user.Nick),
			zap.Bool("online", online))
	}

	if s.feedService != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.feedService.Refresh(ctx); err != nil {
				util.Logger.Warn("认证状态变化后刷新信息流失败", zap.Error(err))
			}
		}()
	}
}

// IsTokenBlacklisted 检查令牌是否已被撤销
func (s *UserService) IsTokenBlacklisted(token string) bool {
	s.blacklistMutex.RLock()
	defer s.blacklistMutex.RUnlock()
	expiry, exists := s.tokenBlacklist[token]
	if !exists {
		return false
	}
	return time.Now().Before(expiry)
}

// GetUserByID 通过账户ID获取用户信息
func (s *UserService) GetUserByID(id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "查询用户失败", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrUserNotFound, "用户不存在")
	}
	return user, nil
}

// GetUserByNick 通过昵称获取用户信息
func (s *UserService) GetUserByNick(nick string) (*model.User, error) {
	user, err := s.userRepo.FindByNick(strings.ToLower(nick))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "查询用户失败", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrUserNotFound, "用户不存在")
	}
	return user, nil
}

// GetUserProfile 返回个人页数据：用户信息加最近的几条帖子
func (s *UserService) GetUserProfile(nick string, postLimit int) (*model.User, []*model.Post, error) {
	user, err := s.GetUserByNick(nick)
	if err != nil {
		return nil, nil, err
	}

	posts, err := s.userRepo.FindPostsByAuthor(user.Nick, postLimit)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrDatabase, "查询用户帖子失败", err)
	}
	return user, posts, nil
}

// UpdateDescription 更新用户的个人描述
func (s *UserService) UpdateDescription(userID, description string) (*model.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	user.Description = description
	if err := s.userRepo.Update(user); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "更新用户失败", err)
	}
	return user, nil
}

// UpdateAvatar 更新用户头像
func (s *UserService) UpdateAvatar(userID, avatarURL string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	user.Avatar = avatarURL
	return s.userRepo.Update(user)
}

// UpdateUserRole 更新用户角色，空字符串表示撤销角色
func (s *UserService) UpdateUserRole(userID, newRole string) error {
	if !model.IsValidRole(newRole) {
		return errors.New(errors.ErrValidation, "无效的角色")
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	if newRole == "" {
		user.Role = nil
	} else {
		user.Role = &newRole
	}
	return s.userRepo.Update(user)
}

// IsModerator 检查用户是否拥有 Moderacja 角色
func (s *UserService) IsModerator(userID string) (bool, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return false, err
	}
	return user.Role != nil && *user.Role == model.RoleModeracja, nil
}

// VerifyEmail 通过邮件里的令牌完成邮箱验证
func (s *UserService) VerifyEmail(token string) error {
	email, err := s.emailService.VerifyEmailToken(token)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidToken, "验证令牌无效", err)
	}

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New(errors.ErrUserNotFound, "用户不存在")
	}
	if user.IsVerified {
		return errors.New(errors.ErrResourceExists, "邮箱已验证")
	}

	user.IsVerified = true
	return s.userRepo.Update(user)
}

// UserServiceInterface 供处理器层和测试使用
type UserServiceInterface interface {
	Register(user *model.User, password string) error
	Login(email, password string) (*model.User, error)
	Logout(userID, token string) error
	IsTokenBlacklisted(token string) bool
	GetUserByID(id string) (*model.User, error)
	GetUserByNick(nick string) (*model.User, error)
	GetUserProfile(nick string, postLimit int) (*model.User, []*model.Post, error)
	UpdateDescription(userID, description string) (*model.User, error)
	UpdateAvatar(userID, avatarURL string) error
	UpdateUserRole(userID, newRole string) error
	IsModerator(userID string) (bool, error)
	VerifyEmail(token string) error
}

// 确保 UserService 实现了 UserServiceInterface
var _ UserServiceInterface = (*UserService)(nil)
