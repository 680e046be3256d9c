// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Addr           string
	Timeout        time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "127.0.0.1:8000",
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 16,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer 创建HTTP服务器，routes 外层包裹中间件链
func NewServer(config ServerConfig, routes http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultServerConfig().Timeout
	}

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(logger),            // 1. 恢复中间件（最先执行，捕获panic）
		RequestIDMiddleware,                   // 2. 请求ID
		LoggerMiddleware(logger),              // 3. 日志中间件
		SecurityHeadersMiddleware,             // 4. 安全头中间件
		CORSMiddleware(config.AllowedOrigins), // 5. CORS中间件
		TimeoutMiddleware(config.Timeout),     // 6. 超时中间件
	)
	if config.MaxBodyBytes > 0 {
		chain = Chain(chain, RequestSizeMiddleware(config.MaxBodyBytes))
	}

	return &Server{
		server: &http.Server{
			Addr:    config.Addr,
			Handler: chain(routes),
			// 超时中间件先于连接超时返回响应
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout + 5*time.Second,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Listen 绑定监听端口；返回后即可接受连接
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	close(s.ready)
	return nil
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("starting HTTP server", zap.String("addr", s.Addr()))

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server", zap.String("addr", s.Addr()))

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Ready 监听端口绑定后关闭
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr 返回服务器地址，已绑定时为实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
