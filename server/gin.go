package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultShutdownTimeout 未配置时的优雅关闭等待时间。
const DefaultShutdownTimeout = 5 * time.Second

// Options HTTP 服务器超时参数，零值表示不限制。
type Options struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// NewEngine 创建不带默认中间件的 Gin 引擎，中间件顺序由调用方决定。
func NewEngine(middlewares ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}

// GinServer 封装了标准的 http.Server，用于运行 Gin 引擎并支持优雅关闭。
type GinServer struct {
	server *http.Server
	logger *slog.Logger
	opts   Options
}

var _ Server = (*GinServer)(nil)

// NewGinServer 创建一个新的Gin服务器实例。
func NewGinServer(engine *gin.Engine, addr string, logger *slog.Logger, opts Options) *GinServer {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &GinServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		logger: logger,
		opts:   opts,
	}
}

// Start 监听地址并提供服务，ctx 取消时执行优雅关闭。
func (s *GinServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定 listener 上提供服务，便于测试使用随机端口。
func (s *GinServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting gin server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gin server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop 优雅地停止Gin服务器，最多等待 ShutdownTimeout。
func (s *GinServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping gin server gracefully")
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
