package app

import (
	"time"

	"github.com/wyfcoding/bsm/server"
)

// Option 配置 App 的函数式选项。
type Option func(*options)

type options struct {
	servers         []server.Server
	cleanups        []func()
	shutdownTimeout time.Duration
}

// WithServer 注册随应用启动、关闭的服务器。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithCleanup 注册关闭时执行的清理函数，按注册的逆序执行。
func WithCleanup(cleanup func()) Option {
	return func(o *options) {
		o.cleanups = append(o.cleanups, cleanup)
	}
}

// WithShutdownTimeout 设置关闭服务器的最长等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
