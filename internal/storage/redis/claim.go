// Package redis 提供基于 Redis 的可选队列投递认领，
// 用于在多进程同时 drain 时减少重复投递（见 DESIGN.md 对
// at-least-once 语义的说明：认领是尽力而为的优化，不是锁）。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer 用 SETNX 在投递前认领队列邮件。
type Claimer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClaimer 创建认领器并校验连接。
func NewClaimer(addr, password string, db int, ttl time.Duration) (*Claimer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Claimer{client: client, ttl: ttl}, nil
}

// TryClaim 尝试认领一封队列邮件；已被其他进程认领时返回 false。
//
// 认领带 TTL：认领者崩溃后邮件在 TTL 过后重新可投递，
// 保持 at-least-once 语义不变。
func (c *Claimer) TryClaim(ctx context.Context, emailID string) (bool, error) {
	key := fmt.Sprintf("email_claim:%s", emailID)
	return c.client.SetNX(ctx, key, 1, c.ttl).Result()
}

// Release 释放认领（投递失败且希望立即重试时调用）。
func (c *Claimer) Release(ctx context.Context, emailID string) error {
	key := fmt.Sprintf("email_claim:%s", emailID)
	return c.client.Del(ctx, key).Err()
}

// Health 检查 Redis 连接可用性。
func (c *Claimer) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (c *Claimer) Close() error {
	return c.client.Close()
}
