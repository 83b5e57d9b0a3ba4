package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store 定义令牌存储接口
type Store interface {
	// Token 返回当前令牌，没有令牌时返回空字符串
	Token(ctx context.Context) (string, error)

	// SetToken 保存令牌
	SetToken(ctx context.Context, token string) error

	// Clear 清除令牌
	Clear(ctx context.Context) error
}

// record 持久化的会话记录
type record struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// MemoryStore 是基于内存的令牌存储，主要用于测试
type MemoryStore struct {
	token string
	mutex sync.RWMutex
}

// NewMemoryStore 创建新的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token 返回当前令牌
func (m *MemoryStore) Token(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.token, nil
}

// SetToken 保存令牌
func (m *MemoryStore) SetToken(ctx context.Context, token string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.token = token
	return nil
}

// Clear 清除令牌
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.token = ""
	return nil
}

// FileStore 将令牌保存在本地JSON文件中
type FileStore struct {
	path  string
	mutex sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 返回会话文件路径
func (f *FileStore) Path() string {
	return f.path
}

// Token 读取令牌，文件不存在时返回空
func (f *FileStore) Token(ctx context.Context) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("读取会话文件失败: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("解析会话文件失败: %w", err)
	}
	return rec.Token, nil
}

// SetToken 写入令牌，先写临时文件再重命名
func (f *FileStore) SetToken(ctx context.Context, token string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("创建会话目录失败: %w", err)
	}

	data, err := json.Marshal(record{Token: token, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("写入会话文件失败: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("保存会话文件失败: %w", err)
	}
	return nil
}

// Clear 删除会话文件
func (f *FileStore) Clear(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除会话文件失败: %w", err)
	}
	return nil
}
