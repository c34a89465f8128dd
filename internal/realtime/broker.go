package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Table 是变更通知关联的表名
type Table string

// Operation 是变更通知关联的操作类型
type Operation string

const (
	TableUsers Table = "users"
	TablePosts Table = "posts"

	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
)

// 每个订阅的通道缓冲大小。订阅方消费过慢时事件会被丢弃，
// 信息流的定时全量刷新会补齐丢失的变更。
const subscriptionBuffer = 64

// Event 携带一条被变更的行
type Event struct {
	Table Table
	Op    Operation
	Row   interface{} // *model.Post 或 *model.User
}

type channelKey struct {
	table Table
	op    Operation
}

// Subscription 表示对某张表某种操作的一个订阅，用完必须显式退订
type Subscription struct {
	C chan Event

	broker *Broker
	key    channelKey
	once   sync.Once
}

// Unsubscribe 退订并关闭通道
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.C)
	})
}

// Broker 是进程内的变更通知总线，仓库在写入成功后发布事件，
// 信息流同步器按 表+操作 订阅
type Broker struct {
	mu   sync.RWMutex
	subs map[channelKey]map[*Subscription]struct{}
}

// NewBroker 创建一个新的变更通知总线
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[channelKey]map[*Subscription]struct{}),
	}
}

// Subscribe 订阅某张表某种操作的变更
func (b *Broker) Subscribe(table Table, op Operation) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriptionBuffer),
		broker: b,
		key:    channelKey{table: table, op: op},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sub.key] == nil {
		b.subs[sub.key] = make(map[*Subscription]struct{})
	}
	b.subs[sub.key][sub] = struct{}{}
	return sub
}

// Publish 向所有匹配的订阅投递一条变更，不阻塞发布方
func (b *Broker) Publish(table Table, op Operation, row interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev := Event{Table: table, Op: op, Row: row}
	for sub := range b.subs[channelKey{table: table, op: op}] {
		select {
		case sub.C <- ev:
		default:
			// 缓冲已满，丢弃事件，由定时刷新兜底
			zap.L().Warn("变更通知被丢弃，订阅方消费过慢",
				zap.String("table", string(table)),
				zap.String("op", string(op)))
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.key], sub)
}
