package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSubscribePublish 测试事件只投递给匹配 表+操作 的订阅
func TestSubscribePublish(t *testing.T) {
	b := NewBroker()

	postSub := b.Subscribe(TablePosts, OpInsert)
	defer postSub.Unsubscribe()
	userSub := b.Subscribe(TableUsers, OpUpdate)
	defer userSub.Unsubscribe()

	b.Publish(TablePosts, OpInsert, "row-1")

	select {
	case ev := <-postSub.C:
		assert.Equal(t, TablePosts, ev.Table)
		assert.Equal(t, OpInsert, ev.Op)
		assert.Equal(t, "row-1", ev.Row)
	case <-time.After(time.Second):
		t.Fatal("没有收到事件")
	}

	// 不匹配的订阅收不到事件
	select {
	case <-userSub.C:
		t.Fatal("收到了不该投递的事件")
	default:
	}
}

// TestFanOut 测试同一事件投递给全部匹配的订阅
func TestFanOut(t *testing.T) {
	b := NewBroker()

	sub1 := b.Subscribe(TablePosts, OpInsert)
	defer sub1.Unsubscribe()
	sub2 := b.Subscribe(TablePosts, OpInsert)
	defer sub2.Unsubscribe()

	b.Publish(TablePosts, OpInsert, "row-1")

	assert.Len(t, sub1.C, 1)
	assert.Len(t, sub2.C, 1)
}

// TestUnsubscribe 测试退订后不再投递，重复退订不恐慌
func TestUnsubscribe(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe(TablePosts, OpInsert)
	sub.Unsubscribe()
	sub.Unsubscribe()

	// 退订后发布不应向已关闭的通道写入
	b.Publish(TablePosts, OpInsert, "row-1")

	_, open := <-sub.C
	assert.False(t, open)
}

// TestPublishDoesNotBlockWhenFull 测试缓冲满时发布方不阻塞，事件被丢弃
func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe(TablePosts, OpInsert)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer+10; i++ {
			b.Publish(TablePosts, OpInsert, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("缓冲满时发布方被阻塞")
	}
	assert.Len(t, sub.C, subscriptionBuffer)
}
