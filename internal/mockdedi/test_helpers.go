package mockdedi

import (
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

// TestServer 运行在httptest上的模拟后端，供其他包的测试使用
type TestServer struct {
	*Server
	URL string
}

// NewTestServer 启动模拟后端，测试结束时自动关闭
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	srv := NewServer(Options{})
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	return &TestServer{Server: srv, URL: hs.URL}
}

// SeedUser 创建用户并签发令牌
func (ts *TestServer) SeedUser(t *testing.T, email, password string) (*User, string) {
	t.Helper()

	user, err := ts.store.AddUser(User{
		Username:       email,
		Email:          email,
		HashedPassword: hashPassword(password),
	})
	require.NoError(t, err, "创建测试用户失败")

	token, err := ts.IssueToken(user)
	require.NoError(t, err, "签发测试令牌失败")
	return user, token
}

// SeedNamespace 为用户创建命名空间
func (ts *TestServer) SeedNamespace(t *testing.T, owner *User, name, description string) string {
	t.Helper()

	ns, err := ts.store.CreateNamespace(owner.ID, name, description, nil)
	require.NoError(t, err, "创建测试命名空间失败")
	return ns.NamespaceID
}

// hashPassword 与客户端的密码摘要算法一致
func hashPassword(password string) string {
	sum := blake2b.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
