// Package ledgertest поднимает поддельный API кастодиального сервиса для тестов.
package ledgertest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ivanoskov/custody_admin/internal/model"
)

const (
	BasePath   = "/api/v1"
	Identifier = "ops@example.com"
	Password   = "correct-horse"
	Token      = "test-token"
)

// Call запрос, который получил сервер.
type Call struct {
	Method string
	Path   string
	Route  string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	calls        []Call
	overrides    map[string]gin.HandlerFunc
	gate         chan struct{}
	Operator     model.Operator
	Users        []model.User
	Wallets      []model.Wallet
	Transactions map[string][]model.Transaction
	Report       model.EvacuationReport
}

// New запускает сервер и останавливает его по завершении теста.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		overrides:    make(map[string]gin.HandlerFunc),
		Transactions: make(map[string][]model.Transaction),
		Operator:     model.Operator{UserID: "op-1", Firstname: "Ada", Lastname: "Ops", Email: Identifier, Role: "ADMIN"},
	}

	r := gin.New()
	api := r.Group(BasePath, s.record, s.override)
	api.POST("/auth/signin", s.signIn)

	authed := api.Group("", s.requireToken)
	authed.GET("/user-admin/list", s.listUsers)
	authed.GET("/admin/wallet/users", s.listWallets)
	authed.GET("/transactions/list", s.listTransactions)
	authed.GET("/admin/user/:id", s.getUser)

	mut := authed.Group("", s.wait)
	mut.POST("/9psb/admin/credit-wallet", s.ok("Wallet credited successfully"))
	mut.POST("/admin/wallet/user/:id/credit", s.ok("Wallet credited successfully"))
	mut.POST("/funds/evacuate", s.evacuate)
	mut.POST("/notifications/admin/send-push", s.ok("Notification sent"))
	mut.POST("/notifications/admin/user/send-push", s.ok("Notification sent"))

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// URL базовый адрес API для клиента.
func (s *Server) URL() string { return s.srv.URL + BasePath }

func (s *Server) Close() {
	s.Release()
	s.srv.Close()
}

// Override подменяет обработчик маршрута, например ("POST", "/funds/evacuate").
func (s *Server) Override(method, route string, h gin.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+BasePath+route] = h
}

// Hold задерживает изменяющие запросы до вызова Release.
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Calls возвращает запросы к маршруту; пустой route означает все.
func (s *Server) Calls(method, route string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && (route == "" || c.Route == BasePath+route) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Route:  c.FullPath(),
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) override(c *gin.Context) {
	s.mu.Lock()
	h, ok := s.overrides[c.Request.Method+" "+c.FullPath()]
	s.mu.Unlock()
	if ok {
		h(c)
		c.Abort()
	}
}

func (s *Server) requireToken(c *gin.Context) {
	if strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ") != Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
	}
}

func (s *Server) wait(c *gin.Context) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-c.Request.Context().Done():
		c.Abort()
	}
}

func (s *Server) signIn(c *gin.Context) {
	var req struct {
		Field    string `json:"field"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed request"})
		return
	}
	if req.Field != Identifier || req.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": Token, "user": s.Operator})
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.Users})
}

func (s *Server) listWallets(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.Wallets})
}

func (s *Server) listTransactions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.Query("owner")
	if owner != "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": s.Transactions[owner]})
		return
	}
	all := []model.Transaction{}
	for _, txs := range s.Transactions {
		all = append(all, txs...)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": all})
}

func (s *Server) getUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.Users {
		if u.UserID == c.Param("id") {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
}

func (s *Server) ok(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
	}
}

func (s *Server) evacuate(c *gin.Context) {
	s.mu.Lock()
	report := s.Report
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"total_accounts_processed": report.TotalAccountsProcessed.String(),
		"total_failures":           report.TotalFailures.String(),
		"total_amount_moved":       report.TotalAmountMoved.String(),
		"total_charges_incured":    report.TotalChargesIncurred.String(),
		"skipped":                  report.Skipped.String(),
		"amount_skipped":           report.AmountSkipped.String(),
	}})
}
