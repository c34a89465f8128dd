package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/newbialywhodis/barcapl/internal/model"
	"github.com/newbialywhodis/barcapl/internal/realtime"
)

// MockPostRepository 是 PostRepository 接口的模拟实现
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(post *model.Post) error {
	args := m.Called(post)
	return args.Error(0)
}

func (m *MockPostRepository) FindByID(id string) (*model.Post, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) FindAll() ([]*model.Post, error) {
	args := m.Called()
	return args.Get(0).([]*model.Post), args.Error(1)
}

func (m *MockPostRepository) Count() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

// MockLikeRepository 是 LikeRepository 接口的模拟实现
type MockLikeRepository struct {
	mock.Mock
}

func (m *MockLikeRepository) Find(postID, userID string) (*model.Like, error) {
	args := m.Called(postID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Like), args.Error(1)
}

func (m *MockLikeRepository) Add(postID, userID string) error {
	args := m.Called(postID, userID)
	return args.Error(0)
}

func (m *MockLikeRepository) Remove(postID, userID string) error {
	args := m.Called(postID, userID)
	return args.Error(0)
}

func (m *MockLikeRepository) ListUserIDs(postID string) ([]string, error) {
	args := m.Called(postID)
	return args.Get(0).([]string), args.Error(1)
}

func newTestFeedService(postRepo *MockPostRepository, likeRepo *MockLikeRepository, userRepo *MockUserRepository) *FeedService {
	return NewFeedService(postRepo, likeRepo, userRepo, realtime.NewBroker())
}

// TestRefreshBuildsSortedView 测试全量刷新：时间倒序、点赞补齐、
// 作者缺失时使用默认值
func TestRefreshBuildsSortedView(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	older := &model.Post{ID: "p1", Author: "alice", Content: "Visca Barça", Timestamp: time.Now().Add(-time.Hour)}
	newer := &model.Post{ID: "p2", Author: "ghost", Content: "Força!", Timestamp: time.Now()}

	role := model.RoleSponsor
	alice := &model.User{Nick: "alice", IsOnline: true, Role: &role, JoinedAt: time.Now().Add(-24 * time.Hour)}

	// 仓库按写入顺序返回，刷新后应当是时间倒序
	postRepo.On("FindAll").Return([]*model.Post{older, newer}, nil)
	likeRepo.On("ListUserIDs", "p1").Return([]string{"u1", "u2"}, nil)
	likeRepo.On("ListUserIDs", "p2").Return([]string{}, nil)
	userRepo.On("FindByNick", "alice").Return(alice, nil)
	userRepo.On("FindByNick", "ghost").Return(nil, nil)

	err := svc.Refresh(context.Background())
	assert.NoError(t, err)

	view := svc.Snapshot("")
	assert.Len(t, view, 2)
	assert.Equal(t, "p2", view[0].ID)
	assert.Equal(t, "p1", view[1].ID)

	// 作者存在：在线状态和角色来自用户记录
	assert.Equal(t, 2, view[1].LikesCount)
	assert.True(t, view[1].IsOnline)
	assert.Equal(t, model.RoleSponsor, *view[1].Role)
	assert.NotNil(t, view[1].JoinedAt)

	// 作者缺失：离线、无角色、无注册时间
	assert.Equal(t, 0, view[0].LikesCount)
	assert.False(t, view[0].IsOnline)
	assert.Nil(t, view[0].Role)
	assert.Nil(t, view[0].JoinedAt)

	// 未登录的查看者一律未点赞
	assert.False(t, view[0].IsLiked)
	assert.False(t, view[1].IsLiked)
}

// TestSnapshotDerivesIsLikedPerViewer 测试点赞标志按查看者推导
func TestSnapshotDerivesIsLikedPerViewer(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	post := &model.Post{ID: "p1", Author: "alice", Content: "hala madrid? nie!", Timestamp: time.Now()}
	postRepo.On("FindAll").Return([]*model.Post{post}, nil)
	likeRepo.On("ListUserIDs", "p1").Return([]string{"u1"}, nil)
	userRepo.On("FindByNick", "alice").Return(nil, nil)

	assert.NoError(t, svc.Refresh(context.Background()))

	assert.True(t, svc.Snapshot("u1")[0].IsLiked)
	assert.False(t, svc.Snapshot("u2")[0].IsLiked)
	assert.False(t, svc.Snapshot("")[0].IsLiked)
}

// TestToggleLikeParity 测试同一 (帖子, 用户) 连续切换两次回到原始状态
func TestToggleLikeParity(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	postRepo.On("FindAll").Return([]*model.Post{}, nil)

	// 第一次：没有点赞记录，写入
	likeRepo.On("Find", "p1", "u1").Return(nil, nil).Once()
	likeRepo.On("Add", "p1", "u1").Return(nil).Once()

	// 第二次：已有点赞记录，删除
	likeRepo.On("Find", "p1", "u1").Return(&model.Like{PostID: "p1", UserID: "u1"}, nil).Once()
	likeRepo.On("Remove", "p1", "u1").Return(nil).Once()

	assert.NoError(t, svc.ToggleLike(context.Background(), "p1", "u1"))
	assert.NoError(t, svc.ToggleLike(context.Background(), "p1", "u1"))
	likeRepo.AssertExpectations(t)
}

// TestToggleLikeAnonymousIsNoOp 测试未登录用户切换点赞不做任何事
func TestToggleLikeAnonymousIsNoOp(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	assert.NoError(t, svc.ToggleLike(context.Background(), "p1", ""))
	likeRepo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
	likeRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

// TestSubmitPostEmptyIsNoOp 测试内容为空或没有作者时不写入
func TestSubmitPostEmptyIsNoOp(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	assert.NoError(t, svc.SubmitPost(context.Background(), "alice", ""))
	assert.NoError(t, svc.SubmitPost(context.Background(), "", "treść"))
	postRepo.AssertNotCalled(t, "Create", mock.Anything)
}

// TestSubmitPostCreatesAndMarksRead 测试发帖：生成ID和UTC时间戳，
// 刷新并清零未读计数
func TestSubmitPostCreatesAndMarksRead(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	svc.mu.Lock()
	svc.unread = 3
	svc.mu.Unlock()

	postRepo.On("Create", mock.MatchedBy(func(p *model.Post) bool {
		return p.ID != "" && p.Author == "alice" && p.Content == "Visca el Barça" &&
			p.Timestamp.Location() == time.UTC
	})).Return(nil).Once()
	postRepo.On("FindAll").Return([]*model.Post{}, nil)

	assert.NoError(t, svc.SubmitPost(context.Background(), "alice", "Visca el Barça"))
	assert.Equal(t, 0, svc.UnreadCount())
	postRepo.AssertExpectations(t)
}

// TestSubmitPostEchoedEventNotDuplicated 测试本地发帖的通知回声：
// 存储层在写入时发布变更通知，发帖的刷新已经把帖子拉进视图，
// 随后到达的回声事件不得插入第二份副本，也不得重新累积未读计数
func TestSubmitPostEchoedEventNotDuplicated(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	// Create 成功后，刷新能从仓库里拉到这条新帖
	var submitted *model.Post
	postRepo.On("Create", mock.AnythingOfType("*model.Post")).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*model.Post)
		postRepo.On("FindAll").Return([]*model.Post{submitted}, nil)
	}).Return(nil).Once()
	likeRepo.On("ListUserIDs", mock.AnythingOfType("string")).Return([]string{}, nil)
	userRepo.On("FindByNick", "fan").Return(nil, nil)

	assert.NoError(t, svc.SubmitPost(context.Background(), "fan", "Visca!"))
	assert.Len(t, svc.Snapshot(""), 1)
	assert.Equal(t, 0, svc.UnreadCount())

	// 发帖写入时发布的通知在清零未读之后才被消费
	svc.handleRemoteInsert(submitted)

	view := svc.Snapshot("")
	assert.Len(t, view, 1)
	assert.Equal(t, submitted.ID, view[0].ID)
	assert.Equal(t, 0, svc.UnreadCount())
}

// TestRefreshCancelledContext 测试已取消的上下文不再发起仓库查询
func TestRefreshCancelledContext(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Refresh(ctx)
	assert.Error(t, err)
	assert.Empty(t, svc.Snapshot(""))
	postRepo.AssertNotCalled(t, "FindAll")
}

// TestStaleRefreshIsDiscarded 测试代数守卫：过期的刷新结果不覆盖视图
func TestStaleRefreshIsDiscarded(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	post := &model.Post{ID: "p1", Author: "alice", Timestamp: time.Now()}
	postRepo.On("FindAll").Return([]*model.Post{post}, nil)
	likeRepo.On("ListUserIDs", "p1").Return([]string{}, nil)
	userRepo.On("FindByNick", "alice").Return(nil, nil)

	// 假装已经应用了更新的刷新结果
	svc.mu.Lock()
	svc.applied = 5
	svc.mu.Unlock()

	assert.NoError(t, svc.Refresh(context.Background()))
	assert.Empty(t, svc.Snapshot(""))
}

// TestRemoteInsertIncrementsUnread 测试变更通知里的新帖：插入视图、
// 未读计数加一、不清零
func TestRemoteInsertIncrementsUnread(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	existing := model.FeedPost{Post: model.Post{ID: "p1", Author: "bob", Timestamp: time.Now().Add(-time.Hour)}}
	svc.mu.Lock()
	svc.view = []model.FeedPost{existing}
	svc.mu.Unlock()

	alice := &model.User{Nick: "alice", IsOnline: true, JoinedAt: time.Now().Add(-time.Hour)}
	userRepo.On("FindByNick", "alice").Return(alice, nil)

	svc.handleRemoteInsert(&model.Post{ID: "p2", Author: "alice", Content: "gol!", Timestamp: time.Now()})

	view := svc.Snapshot("")
	assert.Len(t, view, 2)
	assert.Equal(t, "p2", view[0].ID)
	assert.Equal(t, 0, view[0].LikesCount)
	assert.True(t, view[0].IsOnline)
	assert.Equal(t, 1, svc.UnreadCount())
}

// TestPresenceUpdateFlipsOnlineFlag 测试用户行变更只翻转该作者帖子的在线标志
func TestPresenceUpdateFlipsOnlineFlag(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	svc := newTestFeedService(postRepo, likeRepo, userRepo)

	svc.mu.Lock()
	svc.view = []model.FeedPost{
		{Post: model.Post{ID: "p1", Author: "alice"}},
		{Post: model.Post{ID: "p2", Author: "bob"}, IsOnline: true},
		{Post: model.Post{ID: "p3", Author: "alice"}},
	}
	svc.mu.Unlock()

	svc.handlePresenceUpdate(&model.User{Nick: "alice", IsOnline: true})

	view := svc.Snapshot("")
	assert.True(t, view[0].IsOnline)
	assert.True(t, view[1].IsOnline)
	assert.True(t, view[2].IsOnline)

	svc.handlePresenceUpdate(&model.User{Nick: "alice", IsOnline: false})
	view = svc.Snapshot("")
	assert.False(t, view[0].IsOnline)
	assert.True(t, view[1].IsOnline)
}

// TestRunConsumesBrokerEvents 测试后台循环消费变更通知
func TestRunConsumesBrokerEvents(t *testing.T) {
	postRepo := new(MockPostRepository)
	likeRepo := new(MockLikeRepository)
	userRepo := new(MockUserRepository)
	broker := realtime.NewBroker()
	svc := NewFeedService(postRepo, likeRepo, userRepo, broker)

	userRepo.On("FindByNick", "alice").Return(nil, nil)

	svc.Run(time.Hour)
	defer svc.Stop()

	broker.Publish(realtime.TablePosts, realtime.OpInsert,
		&model.Post{ID: "p1", Author: "alice", Content: "6-1", Timestamp: time.Now()})

	assert.Eventually(t, func() bool {
		return svc.UnreadCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, svc.Snapshot(""), 1)
}
