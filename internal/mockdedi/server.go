package mockdedi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
	"github.com/hewenyu/dedi-console/pkg/model"
)

// 接口路由，同时用作故障注入和调用记录的键
const (
	RouteRegister        = "/dedi/register"
	RouteLogin           = "/dedi/login"
	RouteListNamespaces  = "/dedi/get-namespace-by-profile"
	RouteCreateNamespace = "/dedi/create-namespace"
	RouteUpdateNamespace = "/dedi/update-namespace/:id"
	RouteGenerateDNSTXT  = "/dedi/generate-dns-txt/:id/:domain"
	RouteVerifyDomain    = "/dedi/verify-domain"
)

// TXTChecker 验证域名时确认TXT记录已发布，为nil时跳过DNS检查
type TXTChecker interface {
	HasTXT(ctx context.Context, domain, want string) (bool, error)
}

// Fault 注入的故障响应
type Fault struct {
	Status int
	Body   any
	// Delay 响应前的等待时间
	Delay time.Duration
}

// Call 一次接口调用记录
type Call struct {
	Route string
	Path  string
	Body  map[string]any
	At    time.Time
}

// Server 模拟dedi后端，用于本地开发和测试
type Server struct {
	e        *echo.Echo
	store    *Store
	logger   config.Logger
	checker  TXTChecker
	secret   []byte
	tokenTTL time.Duration

	mu     sync.Mutex
	faults map[string]Fault
	calls  []Call
}

// Options 模拟后端配置
type Options struct {
	Store    *Store
	Logger   config.Logger
	Checker  TXTChecker
	TokenTTL time.Duration
	// AccessLog 是否输出访问日志
	AccessLog bool
}

// NewServer 创建模拟后端
func NewServer(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = config.NewNopLogger()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// 添加中间件
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	s := &Server{
		e:        e,
		store:    opts.Store,
		logger:   opts.Logger,
		checker:  opts.Checker,
		secret:   opts.Store.secret,
		tokenTTL: opts.TokenTTL,
		faults:   make(map[string]Fault),
	}
	e.Use(s.recordAndInject)
	s.registerRoutes()
	return s
}

// registerRoutes 注册API路由
func (s *Server) registerRoutes() {
	s.e.POST(RouteRegister, s.register)
	s.e.POST(RouteLogin, s.login)

	s.e.GET(RouteListNamespaces, s.listNamespaces, s.authenticate)
	s.e.POST(RouteCreateNamespace, s.createNamespace, s.authenticate)
	s.e.PATCH(RouteUpdateNamespace, s.updateNamespace, s.authenticate)
	s.e.GET(RouteGenerateDNSTXT, s.generateDNSTXT, s.authenticate)
	s.e.POST(RouteVerifyDomain, s.verifyDomain, s.authenticate)
}

// ServeHTTP 实现http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Store 返回后端存储
func (s *Server) Store() *Store {
	return s.store
}

// Start 在addr上启动服务，阻塞直到服务关闭
func (s *Server) Start(addr string) error {
	s.logger.Info("模拟dedi后端启动", zap.String("address", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// SetFault 为路由注入故障响应
func (s *Server) SetFault(route string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = f
}

// ClearFault 移除路由的故障响应
func (s *Server) ClearFault(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, route)
}

// Calls 返回路由的调用记录，route为空时返回全部
func (s *Server) Calls(route string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if route == "" || c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

// IssueToken 为用户签发访问令牌
func (s *Server) IssueToken(user *User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}

// recordAndInject 记录调用并按需返回注入的故障
func (s *Server) recordAndInject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Path()

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		}
		c.Request().Body = io.NopCloser(strings.NewReader(string(body)))

		call := Call{Route: route, Path: c.Request().URL.Path, At: time.Now()}
		if len(body) > 0 {
			_ = json.Unmarshal(body, &call.Body)
		}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		fault, faulty := s.faults[route]
		s.mu.Unlock()

		if !faulty {
			return next(c)
		}

		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		if fault.Status == 0 {
			return next(c)
		}
		if fault.Body == nil {
			return c.NoContent(fault.Status)
		}
		if raw, ok := fault.Body.(string); ok {
			return c.String(fault.Status, raw)
		}
		return c.JSON(fault.Status, fault.Body)
	}
}

// authenticate 校验Bearer令牌，失败时返回401
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		}
		c.Set("user_id", sub)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

// storeErrorStatus 存储错误对应的HTTP状态码
func storeErrorStatus(err error) int {
	var se *StoreError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists:
		return http.StatusConflict
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type signupRequest struct {
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// register 处理用户注册
func (s *Server) register(c echo.Context) error {
	req := new(signupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	user, err := s.store.AddUser(User{
		Username:       req.Username,
		Firstname:      req.Firstname,
		Lastname:       req.Lastname,
		Email:          req.Email,
		HashedPassword: req.HashedPassword,
	})
	if err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"message": err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"data":    user,
	})
}

type loginRequest struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// login 处理用户登录
func (s *Server) login(c echo.Context) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	user, err := s.store.Authenticate(req.Email, req.HashedPassword)
	if err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"message": err.Error()})
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"message": "Failed to issue token"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Login successful",
		"data": map[string]any{
			"access_token": token,
			"user":         user,
		},
	})
}

// listNamespaces 返回当前用户的命名空间
func (s *Server) listNamespaces(c echo.Context) error {
	owned, delegated := s.store.ListNamespaces(userID(c))
	if len(owned) == 0 && len(delegated) == 0 {
		return c.JSON(http.StatusOK, map[string]any{"message": model.MessageNoNamespaces})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": model.MessageNamespacesRetrieved,
		"data": map[string]any{
			"owned_namespaces":     nonNil(owned),
			"delegated_namespaces": nonNil(delegated),
		},
	})
}

func nonNil(list []model.Namespace) []model.Namespace {
	if list == nil {
		return []model.Namespace{}
	}
	return list
}

type namespaceRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Meta        model.Meta `json:"meta"`
}

// createNamespace 创建命名空间
func (s *Server) createNamespace(c echo.Context) error {
	req := new(namespaceRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	ns, err := s.store.CreateNamespace(userID(c), req.Name, req.Description, req.Meta)
	if err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"message": err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": model.MessageNamespaceCreated,
		"data":    map[string]any{"namespace_id": ns.NamespaceID},
	})
}

// updateNamespace 更新命名空间
func (s *Server) updateNamespace(c echo.Context) error {
	req := new(namespaceRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	if err := s.store.UpdateNamespace(userID(c), c.Param("id"), req.Name, req.Description, req.Meta); err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"message": model.MessageNamespaceUpdated})
}

// generateDNSTXT 生成TXT记录
func (s *Server) generateDNSTXT(c echo.Context) error {
	txt, err := s.store.GenerateTXT(userID(c), c.Param("id"), c.Param("domain"))
	if err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "DNS TXT record generated successfully",
		"txt":     txt,
	})
}

type verifyRequest struct {
	NamespaceID string `json:"namespace_id"`
}

// verifyDomain 验证域名，配置了TXTChecker时要求至少一条TXT记录已发布
func (s *Server) verifyDomain(c echo.Context) error {
	req := new(verifyRequest)
	if err := c.Bind(req); err != nil || req.NamespaceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "namespace_id is required"})
	}

	if s.checker != nil {
		published := false
		for domain, txt := range s.store.PendingTXT(req.NamespaceID) {
			ok, err := s.checker.HasTXT(c.Request().Context(), domain, txt)
			if err != nil {
				s.logger.Warn("查询TXT记录失败", zap.String("domain", domain), zap.Error(err))
				continue
			}
			if ok {
				published = true
				break
			}
		}
		if !published {
			return c.JSON(http.StatusBadRequest, map[string]any{"message": "DNS TXT record not found"})
		}
	}

	ns, err := s.store.MarkVerified(userID(c), req.NamespaceID)
	if err != nil {
		return c.JSON(storeErrorStatus(err), map[string]any{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Domain verified successfully",
		"data": map[string]any{
			"namespace_id": ns.NamespaceID,
			"is_verified":  ns.IsVerified,
		},
	})
}
