// Package health 基于 heptiolabs/healthcheck 暴露存活与就绪端点。
package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"

	"bugtrack/backend/internal/storage"
)

// Checker 健康检查器。
//
// 存活检查只看进程自身；就绪检查包含存储等外部依赖，
// 依赖不可用时应把实例摘出流量而不是重启。
type Checker struct {
	handler healthcheck.Handler
}

// NewChecker 创建健康检查器并注册存储就绪检查。
func NewChecker(store storage.Store) *Checker {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(2000))
	h.AddReadinessCheck("storage", store.Health)
	return &Checker{handler: h}
}

// AddReadinessCheck 注册额外的就绪检查（如 Redis 认领连接）。
func (c *Checker) AddReadinessCheck(name string, check func() error) {
	c.handler.AddReadinessCheck(name, check)
}

// LiveEndpoint 存活端点处理器。
func (c *Checker) LiveEndpoint() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyEndpoint 就绪端点处理器。
func (c *Checker) ReadyEndpoint() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}
