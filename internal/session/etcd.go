package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
)

// etcd操作的超时时间
const etcdTimeout = 5 * time.Second

// EtcdStore 将令牌保存在etcd中，多个面板实例可共享同一会话
type EtcdStore struct {
	client *clientv3.Client
	key    string
	logger config.Logger
}

// NewEtcdStore 连接etcd并创建令牌存储
func NewEtcdStore(cfg *config.Config, logger config.Logger) (*EtcdStore, error) {
	logger.Info("连接到etcd集群", zap.Strings("endpoints", cfg.Session.Etcd.Endpoints))

	dialTimeout := cfg.Session.Etcd.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = etcdTimeout
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Session.Etcd.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Session.Etcd.Username,
		Password:    cfg.Session.Etcd.Password,
	})
	if err != nil {
		logger.Error("连接etcd失败", zap.Error(err))
		return nil, fmt.Errorf("连接etcd失败: %w", err)
	}

	return &EtcdStore{
		client: client,
		key:    cfg.Session.Etcd.Key,
		logger: logger,
	}, nil
}

// Ping 检查etcd集群状态
func (e *EtcdStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	endpoints := e.client.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("etcd未配置endpoint")
	}
	if _, err := e.client.Status(ctx, endpoints[0]); err != nil {
		return fmt.Errorf("etcd健康检查失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (e *EtcdStore) Close() error {
	e.logger.Info("关闭etcd连接")
	return e.client.Close()
}

// Token 从etcd读取令牌
func (e *EtcdStore) Token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	resp, err := e.client.Get(ctx, e.key)
	if err != nil {
		e.logger.Error("从etcd获取会话失败", zap.String("key", e.key), zap.Error(err))
		return "", fmt.Errorf("从etcd获取会话失败: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return "", nil
	}

	var rec record
	if err := json.Unmarshal(resp.Kvs[0].Value, &rec); err != nil {
		return "", fmt.Errorf("解析会话数据失败: %w", err)
	}
	return rec.Token, nil
}

// SetToken 将令牌写入etcd
func (e *EtcdStore) SetToken(ctx context.Context, token string) error {
	data, err := json.Marshal(record{Token: token, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	if _, err := e.client.Put(ctx, e.key, string(data)); err != nil {
		e.logger.Error("写入etcd失败", zap.String("key", e.key), zap.Error(err))
		return fmt.Errorf("写入etcd失败: %w", err)
	}
	return nil
}

// Clear 从etcd删除令牌
func (e *EtcdStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	if _, err := e.client.Delete(ctx, e.key); err != nil {
		return fmt.Errorf("从etcd删除会话失败: %w", err)
	}
	return nil
}
