package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
)

// Variant 通知样式
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification 展示给用户的提示消息
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

// Notifier 通知接收方
type Notifier interface {
	Notify(n Notification)
}

// DefaultFeedSize 通知队列默认容量
const DefaultFeedSize = 50

// Feed 有界的内存通知队列，超出容量时丢弃最旧的通知
// 页面通过轮询读取，同时每条通知都会写入日志
type Feed struct {
	mu     sync.Mutex
	items  []Notification
	size   int
	logger config.Logger
	now    func() time.Time
}

// NewFeed 创建通知队列
func NewFeed(size int, logger config.Logger) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{
		items:  make([]Notification, 0, size),
		size:   size,
		logger: logger,
		now:    time.Now,
	}
}

// Notify 记录一条通知，缺省的ID和时间会自动补齐
func (f *Feed) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = f.now()
	}
	if n.Variant == "" {
		n.Variant = VariantDefault
	}

	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
		zap.String("variant", string(n.Variant)),
	}
	if n.Variant == VariantDestructive {
		f.logger.Warn("用户通知", fields...)
	} else {
		f.logger.Info("用户通知", fields...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == f.size {
		copy(f.items, f.items[1:])
		f.items = f.items[:f.size-1]
	}
	f.items = append(f.items, n)
}

// Recent 返回最近的limit条通知，按时间先后排列，limit<=0时返回全部
func (f *Feed) Recent(limit int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(f.items) {
		start = len(f.items) - limit
	}
	out := make([]Notification, len(f.items)-start)
	copy(out, f.items[start:])
	return out
}

// Drain 取出并清空全部通知
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.items
	f.items = make([]Notification, 0, f.size)
	return out
}

// 页面路由
const (
	RouteHome  = "/"
	RouteLogin = "/login"
)

// Navigator 页面跳转
type Navigator interface {
	Navigate(route string)
}

// Location 记录当前路由，供页面轮询
type Location struct {
	mu      sync.RWMutex
	current string
	logger  config.Logger
}

// NewLocation 创建路由记录，初始路由为空
func NewLocation(logger config.Logger) *Location {
	return &Location{logger: logger}
}

// Navigate 跳转到route
func (l *Location) Navigate(route string) {
	l.mu.Lock()
	l.current = route
	l.mu.Unlock()
	l.logger.Debug("页面跳转", zap.String("route", route))
}

// Current 返回最近一次跳转的路由
func (l *Location) Current() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Reset 清除路由记录，页面完成跳转后调用
func (l *Location) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = ""
}
