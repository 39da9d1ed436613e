// Package app 应用生命周期：启动服务器、等待退出信号、优雅关闭并清理资源。
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wyfcoding/bsm/server"
)

// App 应用程序容器。
type App struct {
	name   string
	logger *slog.Logger
	opts   options
}

// New 创建一个新的应用程序实例。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	o := options{shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return &App{name: name, logger: logger, opts: o}
}

// Run 运行直到收到 SIGINT/SIGTERM。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 启动所有服务器，ctx 结束或任一服务器出错时关闭全部服务器并执行清理。
func (a *App) RunContext(ctx context.Context) error {
	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		startErr error
	)
	for _, srv := range a.opts.servers {
		wg.Add(1)
		go func(s server.Server) {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				a.logger.Error("server failed", "error", err)
				mu.Lock()
				startErr = errors.Join(startErr, err)
				mu.Unlock()
				cancel()
			}
		}(srv)
	}

	<-ctx.Done()
	a.logger.Info("shutting down application", "name", a.name)

	// Start 在 ctx 取消后自行关闭，这里等待其返回
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.opts.shutdownTimeout):
		a.logger.Warn("servers did not stop within timeout", "timeout", a.opts.shutdownTimeout)
	}

	for i := len(a.opts.cleanups) - 1; i >= 0; i-- {
		a.opts.cleanups[i]()
	}

	mu.Lock()
	defer mu.Unlock()
	if startErr != nil {
		return startErr
	}
	a.logger.Info("application shut down gracefully")
	return nil
}
