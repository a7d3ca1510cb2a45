// Package postgres 提供 pgx 连接池直连的邮件队列存储，
// 供独立的队列投递任务（cmd/mailer）使用，绕开完整的 GORM 存储栈。
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// QueueStore 基于 pgxpool 的邮件队列存储实现。
type QueueStore struct {
	pool *pgxpool.Pool
}

// NewQueueStore 创建队列存储并校验连接。
func NewQueueStore(ctx context.Context, dsn string, maxConns int) (*QueueStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &QueueStore{pool: pool}, nil
}

// EnqueueEmail 入队一封通知邮件。
func (s *QueueStore) EnqueueEmail(email *domain.QueuedEmail) error {
	if email.SubmittedAt.IsZero() {
		email.SubmittedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(email.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO queued_emails (id, recipient, subject, body, metadata, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		email.ID, email.Recipient, email.Subject, email.Body, metadata, email.SubmittedAt)
	return err
}

// PendingEmailIDs 返回待投递邮件 ID，按入队时间升序。
func (s *QueueStore) PendingEmailIDs() ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id FROM queued_emails ORDER BY submitted_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetEmail 根据 ID 获取队列邮件。
func (s *QueueStore) GetEmail(id string) (*domain.QueuedEmail, error) {
	var (
		email    domain.QueuedEmail
		metadata []byte
	)
	err := s.pool.QueryRow(context.Background(),
		`SELECT id, recipient, subject, body, metadata, submitted_at
		 FROM queued_emails WHERE id = $1`, id).
		Scan(&email.ID, &email.Recipient, &email.Subject, &email.Body, &metadata, &email.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrEmailNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &email.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &email, nil
}

// DeleteEmail 从队列删除邮件，不存在时静默成功。
func (s *QueueStore) DeleteEmail(id string) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM queued_emails WHERE id = $1`, id)
	return err
}

// QueueDepth 返回当前队列深度。
func (s *QueueStore) QueueDepth() (int, error) {
	var count int
	err := s.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM queued_emails`).Scan(&count)
	return count, err
}

// Close 关闭连接池。
func (s *QueueStore) Close() error {
	s.pool.Close()
	return nil
}

// Health 检查连接可用性。
func (s *QueueStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
