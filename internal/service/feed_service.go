package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newbialywhodis/barcapl/internal/common"
	"github.com/newbialywhodis/barcapl/internal/model"
	"github.com/newbialywhodis/barcapl/internal/realtime"
	"github.com/newbialywhodis/barcapl/internal/repository/interfaces"
	serviceErrors "github.com/newbialywhodis/barcapl/internal/service/errors"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// FeedService 维护 La Rambla 信息流的内存视图：帖子附带点赞数、
// 作者在线状态和角色。视图通过三条独立的渠道保持新鲜：
// 启动/显式触发的全量刷新、变更通知订阅、定时全量刷新兜底。
type FeedService struct {
	postRepo interfaces.PostRepository
	likeRepo interfaces.LikeRepository
	userRepo interfaces.UserRepository
	feed     *realtime.Broker

	mu      sync.RWMutex
	view    []model.FeedPost
	unread  int
	applied uint64 // 当前视图对应的刷新代数，受 mu 保护

	gen atomic.Uint64 // 刷新代数发号器

	runOnce  sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewFeedService 创建一个新的 FeedService 实例
func NewFeedService(
	postRepo interfaces.PostRepository,
	likeRepo interfaces.LikeRepository,
	userRepo interfaces.UserRepository,
	feed *realtime.Broker,
) *FeedService {
	return &FeedService{
		postRepo: postRepo,
		likeRepo: likeRepo,
		userRepo: userRepo,
		feed:     feed,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Refresh 全量重建视图：拉取全部帖子，并发补齐每条帖子的点赞
// 和作者信息，按时间倒序排序后整体替换。代数守卫保证慢的旧刷新
// 不会覆盖已应用的新结果。
func (s *FeedService) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrInternal, "刷新被取消", err)
	}

	gen := s.gen.Add(1)

	posts, err := s.postRepo.FindAll()
	if err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrDatabase, "拉取帖子列表失败", err)
	}

	entries := make([]model.FeedPost, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	for i, post := range posts {
		i, post := i, post
		g.Go(func() error {
			// 超时、取消或其他条目已失败时不再发起查询
			if err := gctx.Err(); err != nil {
				return err
			}
			likers, err := s.likeRepo.ListUserIDs(post.ID)
			if err != nil {
				return err
			}
			author, err := s.userRepo.FindByNick(post.Author)
			if err != nil {
				return err
			}

			entry := model.FeedPost{
				Post:       *post,
				LikesCount: len(likers),
				LikerIDs:   likers,
			}
			// 作者记录缺失时退化为默认值：离线、无角色、无注册时间
			if author != nil {
				entry.IsOnline = author.IsOnline
				entry.Role = author.Role
				joinedAt := author.JoinedAt
				entry.JoinedAt = &joinedAt
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrDatabase, "补齐帖子数据失败", err)
	}

	sortFeed(entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied {
		// 更新的刷新结果已经应用，丢弃这次过期的结果
		util.Logger.Debug("丢弃过期的刷新结果",
			zap.Uint64("generation", gen),
			zap.Uint64("applied", s.applied))
		return nil
	}
	s.applied = gen
	s.view = entries
	return nil
}

// RefreshAndMarkRead 是用户显式触发的刷新：全量刷新并清零未读计数
func (s *FeedService) RefreshAndMarkRead(ctx context.Context) error {
	err := s.Refresh(ctx)

	s.mu.Lock()
	s.unread = 0
	s.mu.Unlock()
	return err
}

// SubmitPost 发布一条新帖子。内容为空或没有登录用户时不做任何事。
func (s *FeedService) SubmitPost(ctx context.Context, authorNick, content string) error {
	if authorNick == "" || content == "" {
		return nil
	}

	post := &model.Post{
		ID:        uuid.NewString(),
		Author:    authorNick,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.postRepo.Create(post); err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrDatabase, "发布帖子失败", err)
	}

	return s.RefreshAndMarkRead(ctx)
}

// ToggleLike 切换点赞状态：已点赞则取消，未点赞则写入。
// 没有登录用户时不做任何事。对同一 (帖子, 用户) 重复调用两次
// 会回到原始状态。
func (s *FeedService) ToggleLike(ctx context.Context, postID, viewerID string) error {
	if viewerID == "" {
		return nil
	}

	existing, err := s.likeRepo.Find(postID, viewerID)
	if err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrDatabase, "查询点赞失败", err)
	}
	if existing != nil {
		err = s.likeRepo.Remove(postID, viewerID)
	} else {
		err = s.likeRepo.Add(postID, viewerID)
	}
	if err != nil {
		return serviceErrors.Wrap(serviceErrors.ErrDatabase, "切换点赞失败", err)
	}

	return s.Refresh(ctx)
}

// Snapshot 返回视图的副本。IsLiked 按当前查看者在读取时推导，
// 未登录的查看者一律为 false。
func (s *FeedService) Snapshot(viewerID string) []model.FeedPost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FeedPost, len(s.view))
	copy(out, s.view)
	for i := range out {
		out[i].IsLiked = viewerID != "" && containsString(out[i].LikerIDs, viewerID)
	}
	return out
}

// UnreadCount 返回自上次显式刷新以来通过变更通知到达的新帖数
func (s *FeedService) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Run 启动后台同步循环：订阅帖子插入和用户更新两条变更通知，
// 外加一个固定间隔的全量刷新兜底。循环内的任何失败都只记录
// 日志，等待下一个定时周期重试。
func (s *FeedService) Run(interval time.Duration) {
	s.runOnce.Do(func() {
		postSub := s.feed.Subscribe(realtime.TablePosts, realtime.OpInsert)
		userSub := s.feed.Subscribe(realtime.TableUsers, realtime.OpUpdate)

		go func() {
			defer close(s.done)
			defer postSub.Unsubscribe()
			defer userSub.Unsubscribe()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-s.stop:
					return
				case ev := <-postSub.C:
					if post, ok := ev.Row.(*model.Post); ok {
						s.handleRemoteInsert(post)
					}
				case ev := <-userSub.C:
					if user, ok := ev.Row.(*model.User); ok {
						s.handlePresenceUpdate(user)
					}
				case <-ticker.C:
					s.refreshTick()
				}
			}
		}()
	})
}

// Stop 停止后台循环并退订变更通知，不会中断进行中的刷新
func (s *FeedService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}

// refreshTick 是定时兜底刷新，临时性错误立即重试一次
func (s *FeedService) refreshTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := common.WithRetry(func() error {
		return s.Refresh(ctx)
	}, 2)
	if err != nil {
		util.Logger.Error("定时刷新信息流失败，等待下一个周期", zap.Error(err))
	}
}

// handleRemoteInsert 处理变更通知里的新帖：补一次作者查询，
// 以零点赞构造条目插入视图头部并重新排序，未读计数加一。
// 不重建视图，也不清零未读计数。
// 全量刷新和变更通知会重叠：本地发帖先刷新、再收到自己写入的
// 通知回声，定时刷新也可能先于通知把帖子拉进视图。已在视图中
// 的帖子直接忽略，未读计数也不动。
func (s *FeedService) handleRemoteInsert(post *model.Post) {
	entry := model.FeedPost{Post: *post}

	author, err := s.userRepo.FindByNick(post.Author)
	if err != nil {
		util.Logger.Warn("查询新帖作者失败，使用默认值",
			zap.Error(err),
			zap.String("author", post.Author))
	}
	if author != nil {
		entry.IsOnline = author.IsOnline
		entry.Role = author.Role
		joinedAt := author.JoinedAt
		entry.JoinedAt = &joinedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.view {
		if s.view[i].ID == post.ID {
			return
		}
	}
	s.view = append([]model.FeedPost{entry}, s.view...)
	sortFeed(s.view)
	s.unread++
}

// handlePresenceUpdate 处理用户行变更：翻转视图中该作者全部帖子
// 的在线标志，其余字段不动
func (s *FeedService) handlePresenceUpdate(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.view {
		if s.view[i].Author == user.Nick {
			s.view[i].IsOnline = user.IsOnline
		}
	}
}

// sortFeed 按时间倒序排序，时间相同的帖子顺序不做保证
func sortFeed(entries []model.FeedPost) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
