package refresh

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
)

// Task 后台执行的任务，ctx在任务被取消或调度器停止时结束
type Task func(ctx context.Context)

// Scheduler 按键管理可取消的后台任务
// 同一个键同时只有一个任务，新任务会取消尚未结束的旧任务
type Scheduler struct {
	logger config.Logger

	mu      sync.Mutex
	tasks   map[string]*handle
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
}

type handle struct {
	id     uint64
	cancel context.CancelFunc
}

// NewScheduler 创建调度器
func NewScheduler(logger config.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make(map[string]*handle),
	}
}

// Schedule 启动键为key的任务，先取消同键的旧任务
// 调度器停止后调用返回false
func (s *Scheduler) Schedule(key string, task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if prev, ok := s.tasks[key]; ok {
		prev.cancel()
		s.logger.Debug("取消未完成的刷新任务", zap.String("key", key))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.seq++
	h := &handle{id: s.seq, cancel: cancel}
	s.tasks[key] = h

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(key, h)
		task(ctx)
	}()
	return true
}

// finish 任务结束后移除记录，键已被新任务占用时保留新任务
func (s *Scheduler) finish(key string, h *handle) {
	h.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tasks[key]; ok && cur.id == h.id {
		delete(s.tasks, key)
	}
}

// Cancel 取消键为key的任务，返回是否存在该任务
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.tasks[key]
	if !ok {
		return false
	}
	h.cancel()
	delete(s.tasks, key)
	return true
}

// Pending 判断键为key的任务是否仍在运行
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop 取消所有任务并等待它们退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, h := range s.tasks {
		h.cancel()
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Wait 等待当前所有任务结束，主要用于测试
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
