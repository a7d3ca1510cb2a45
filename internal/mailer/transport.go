// Package mailer 负责把队列邮件投递到 SMTP 服务器。
package mailer

import (
	"context"
	"sync"

	"bugtrack/backend/internal/domain"
)

// Transport 邮件投递通道。
type Transport interface {
	// Send 投递一封邮件，失败时邮件留在队列中等待重试。
	Send(ctx context.Context, email *domain.QueuedEmail) error
	Close() error
}

// Recorder 测试用投递通道，记录所有投递并支持按收件人注入失败。
type Recorder struct {
	mu      sync.Mutex
	sent    []domain.QueuedEmail
	failFor map[string]error
	failAll error
}

// NewRecorder 创建记录器。
func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[string]error)}
}

// Send 记录投递，命中注入规则时返回对应错误。
func (r *Recorder) Send(_ context.Context, email *domain.QueuedEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAll != nil {
		return r.failAll
	}
	if err, ok := r.failFor[email.Recipient]; ok {
		return err
	}
	r.sent = append(r.sent, *email)
	return nil
}

// Close 实现 Transport。
func (r *Recorder) Close() error { return nil }

// FailRecipient 让发往某收件人的投递固定失败。
func (r *Recorder) FailRecipient(addr string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[addr] = err
}

// FailAll 让所有投递固定失败。
func (r *Recorder) FailAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = err
}

// Sent 返回已成功投递的邮件副本。
func (r *Recorder) Sent() []domain.QueuedEmail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.QueuedEmail, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo 返回已投递邮件的收件人列表。
func (r *Recorder) SentTo() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for i := range r.sent {
		out = append(out, r.sent[i].Recipient)
	}
	return out
}
