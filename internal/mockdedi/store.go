package mockdedi

import (
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/hewenyu/dedi-console/pkg/model"
)

// 定义错误代码
const (
	// ErrNotFound 资源不存在
	ErrNotFound = iota + 1
	// ErrAlreadyExists 资源已存在
	ErrAlreadyExists
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument
	// ErrForbidden 无权操作
	ErrForbidden
	// ErrUnauthenticated 认证失败
	ErrUnauthenticated
)

// StoreError 存储操作返回的错误，Message直接作为接口响应消息
type StoreError struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *StoreError) Error() string {
	return e.Message
}

func newError(code int, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// User 后端用户
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	Email          string `json:"email"`
	HashedPassword string `json:"-"`
}

// record 命名空间及其后端状态
type record struct {
	ns        model.Namespace
	owner     string
	delegates map[string]bool
	// pending 尚未对读请求可见的更新
	pending *model.Namespace
	// lag pending生效前还会返回旧数据的读取次数
	lag int
	// txt 按域名生成的TXT记录
	txt map[string]string
}

// Store 模拟dedi后端的内存存储
// 可配置读延迟来模拟写后读不一致
type Store struct {
	mutex      sync.RWMutex
	users      map[string]*User // 按email索引
	namespaces map[string]*record
	readLag    int
	secret     []byte
	now        func() time.Time
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*User),
		namespaces: make(map[string]*record),
		secret:     []byte(uuid.NewString()),
		now:        time.Now,
	}
}

// SetReadLag 设置更新后仍返回旧数据的读取次数
func (s *Store) SetReadLag(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.readLag = n
}

// AddUser 添加用户
func (s *Store) AddUser(u User) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" || u.HashedPassword == "" {
		return nil, newError(ErrInvalidArgument, "Email and password are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.users[email]; exists {
		return nil, newError(ErrAlreadyExists, "User already exists")
	}

	u.Email = email
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[email] = &u
	copied := u
	return &copied, nil
}

// Authenticate 校验邮箱和密码摘要
func (s *Store) Authenticate(email, hashedPassword string) (*User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	u, exists := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !exists || u.HashedPassword != hashedPassword {
		return nil, newError(ErrUnauthenticated, "Invalid email or password")
	}
	copied := *u
	return &copied, nil
}

// CreateNamespace 为owner创建命名空间，同一用户下名称不能重复
func (s *Store) CreateNamespace(owner, name, description string, meta model.Meta) (model.Namespace, error) {
	if name == "" || description == "" {
		return model.Namespace{}, newError(ErrInvalidArgument, "Name and description are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, r := range s.namespaces {
		if r.owner == owner && r.ns.Name == name {
			return model.Namespace{}, newError(ErrAlreadyExists, "Namespace name already exists")
		}
	}

	now := s.now().UTC()
	ns := model.Namespace{
		NamespaceID: uuid.NewString(),
		Name:        name,
		Description: description,
		Meta:        meta,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     "1",
		TTL:         3600,
	}
	ns.Digest = s.digest(ns.NamespaceID, ns.Name, ns.Description)

	s.namespaces[ns.NamespaceID] = &record{
		ns:        ns,
		owner:     owner,
		delegates: make(map[string]bool),
		txt:       make(map[string]string),
	}
	return ns, nil
}

// Delegate 把命名空间共享给另一个用户
func (s *Store) Delegate(namespaceID, userID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.namespaces[namespaceID]
	if !exists {
		return newError(ErrNotFound, "Namespace not found")
	}
	r.delegates[userID] = true
	return nil
}

// UpdateNamespace 更新名称、描述和元数据，只有owner可以更新
// 配置了读延迟时更新在若干次读取后才可见
func (s *Store) UpdateNamespace(owner, namespaceID, name, description string, meta model.Meta) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.namespaces[namespaceID]
	if !exists {
		return newError(ErrNotFound, "Namespace not found")
	}
	if r.owner != owner {
		return newError(ErrForbidden, "Only the owner can update this namespace")
	}

	updated := r.ns
	if r.pending != nil {
		updated = *r.pending
	}
	updated.Name = name
	updated.Description = description
	updated.Meta = meta
	updated.UpdatedAt = s.now().UTC()
	updated.VersionCount++
	updated.Digest = s.digest(updated.NamespaceID, updated.Name, updated.Description)

	if s.readLag <= 0 {
		r.ns = updated
		r.pending = nil
		return nil
	}
	r.pending = &updated
	r.lag = s.readLag
	return nil
}

// ListNamespaces 返回用户拥有的和被共享的命名空间，按创建时间排序
func (s *Store) ListNamespaces(userID string) (owned, delegated []model.Namespace) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, r := range s.namespaces {
		isOwner := r.owner == userID
		if !isOwner && !r.delegates[userID] {
			continue
		}

		if r.pending != nil {
			if r.lag > 0 {
				r.lag--
			} else {
				r.ns = *r.pending
				r.pending = nil
			}
		}

		if isOwner {
			owned = append(owned, r.ns)
		} else {
			delegated = append(delegated, r.ns)
		}
	}

	sortNamespaces(owned)
	sortNamespaces(delegated)
	return owned, delegated
}

func sortNamespaces(list []model.Namespace) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].NamespaceID < list[j].NamespaceID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// GenerateTXT 为命名空间和域名生成TXT记录，同一组合重复生成结果相同
func (s *Store) GenerateTXT(userID, namespaceID, domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return "", newError(ErrInvalidArgument, "Domain is required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, err := s.accessible(userID, namespaceID)
	if err != nil {
		return "", err
	}

	txt := "dedi-verification=" + s.digest(namespaceID, domain)
	r.txt[domain] = txt
	return txt, nil
}

// PendingTXT 返回命名空间已生成的TXT记录，按域名索引
func (s *Store) PendingTXT(namespaceID string) map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]string)
	if r, exists := s.namespaces[namespaceID]; exists {
		for k, v := range r.txt {
			out[k] = v
		}
	}
	return out
}

// MarkVerified 将命名空间标记为已验证，必须先生成过TXT记录
func (s *Store) MarkVerified(userID, namespaceID string) (model.Namespace, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, err := s.accessible(userID, namespaceID)
	if err != nil {
		return model.Namespace{}, err
	}
	if len(r.txt) == 0 {
		return model.Namespace{}, newError(ErrInvalidArgument, "No DNS TXT record generated for this namespace")
	}

	r.ns.IsVerified = true
	if r.pending != nil {
		r.pending.IsVerified = true
	}
	return r.ns, nil
}

// accessible 调用方需持有锁
func (s *Store) accessible(userID, namespaceID string) (*record, error) {
	r, exists := s.namespaces[namespaceID]
	if !exists {
		return nil, newError(ErrNotFound, "Namespace not found")
	}
	if r.owner != userID && !r.delegates[userID] {
		return nil, newError(ErrForbidden, "You do not have access to this namespace")
	}
	return r, nil
}

// digest 生成确定性的短摘要
func (s *Store) digest(parts ...string) string {
	h, _ := blake2b.New(16, s.secret)
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
