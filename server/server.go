// Package server HTTP 服务器的生命周期封装。
package server

import "context"

// Server 接口定义了一个通用的服务器行为契约。
type Server interface {
	// Start 阻塞运行，直到 ctx 被取消或服务器出错。
	Start(ctx context.Context) error
	// Stop 等待处理中的请求完成后停止。
	Stop(ctx context.Context) error
}
