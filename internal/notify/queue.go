package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/mailer"
	"bugtrack/backend/internal/monitoring"
	"bugtrack/backend/internal/storage"
)

// Clock 供测试注入的时钟。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Claimer 投递前的跨进程认领，nil 表示不启用。
//
// 认领是尽力而为的去重：认领失败不阻止投递，语义仍是 at-least-once。
type Claimer interface {
	TryClaim(ctx context.Context, emailID string) (bool, error)
	Release(ctx context.Context, emailID string) error
}

// Queue 通知邮件的持久化队列。
//
// 入队即落库，投递成功才删除；get 到空视为已被其他进程投递。
// 同一封邮件可能被并发 drain 重复投递，这是接受的交付语义。
type Queue struct {
	store     storage.EmailQueueRepository
	transport mailer.Transport
	claimer   Claimer
	cfg       *config.Config
	metrics   *monitoring.Metrics
	clock     Clock
	hostname  string
	log       *zap.Logger

	mu        sync.Mutex
	generated bool
	force     bool
}

// NewQueue 创建通知队列。
func NewQueue(store storage.EmailQueueRepository, transport mailer.Transport, claimer Claimer, cfg *config.Config, metrics *monitoring.Metrics, hostname string, log *zap.Logger) *Queue {
	if hostname == "" {
		hostname = "localhost"
	}
	return &Queue{
		store:     store,
		transport: transport,
		claimer:   claimer,
		cfg:       cfg,
		metrics:   metrics,
		clock:     systemClock{},
		hostname:  hostname,
		log:       log,
	}
}

// Enqueue 持久化一封通知邮件，返回队列 ID。
//
// 收件地址为空或通知总开关关闭时为空操作，返回空 ID。force 要求
// 请求结束时无视批处理配置立即 drain。
func (q *Queue) Enqueue(recipient, subject, body string, headers []domain.EmailHeader, force bool) (string, error) {
	if recipient == "" || !q.cfg.Email.Enabled {
		return "", nil
	}

	email := &domain.QueuedEmail{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Metadata: domain.EmailMetadata{
			Headers:  headers,
			Priority: q.cfg.Email.Priority,
			Charset:  q.cfg.Email.Charset,
			Hostname: q.hostname,
		},
		SubmittedAt: q.clock.Now(),
	}
	if err := q.store.EnqueueEmail(email); err != nil {
		return "", fmt.Errorf("enqueue email for %s: %w", recipient, err)
	}

	q.mu.Lock()
	q.generated = true
	q.force = q.force || force
	q.mu.Unlock()

	q.metrics.RecordEmailEnqueued()
	q.log.Debug("email enqueued",
		zap.String("email_id", email.ID),
		zap.String("recipient", recipient),
		zap.String("subject", subject))
	return email.ID, nil
}

// Flags 返回本实例是否产生过邮件以及是否要求立即投递。
func (q *Queue) Flags() (generated, force bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generated, q.force
}

func (q *Queue) resetFlags() {
	q.mu.Lock()
	q.generated = false
	q.force = false
	q.mu.Unlock()
}

// Drain 尝试投递当前排队的全部邮件。
//
// 失败的邮件留在队列中等待下次 drain（deleteOnFailure 为真时例外）。
// 失败处理的累计耗时超出预算后放弃剩余批次，防止邮件服务器不可达
// 时拖垮请求延迟；预算是软上限，单次慢调用仍可能超出。
func (q *Queue) Drain(ctx context.Context, deleteOnFailure bool) error {
	ids, err := q.store.PendingEmailIDs()
	if err != nil {
		return fmt.Errorf("list pending emails: %w", err)
	}

	budget := q.cfg.Email.DrainBudget
	var failureElapsed time.Duration

	for _, id := range ids {
		email, err := q.store.GetEmail(id)
		if errors.Is(err, storage.ErrEmailNotFound) {
			// 已被其他进程投递
			continue
		}
		if err != nil {
			return fmt.Errorf("load queued email %s: %w", id, err)
		}

		if q.claimer != nil {
			claimed, err := q.claimer.TryClaim(ctx, id)
			if err != nil {
				q.log.Warn("claim failed, proceeding without claim",
					zap.String("email_id", id), zap.Error(err))
			} else if !claimed {
				continue
			}
		}

		start := q.clock.Now()
		sendErr := q.transport.Send(ctx, email)
		if sendErr == nil {
			if err := q.store.DeleteEmail(id); err != nil {
				return fmt.Errorf("delete sent email %s: %w", id, err)
			}
			if q.claimer != nil {
				_ = q.claimer.Release(ctx, id)
			}
			q.metrics.RecordEmailSent()
			continue
		}

		q.metrics.RecordEmailFailed()
		q.log.Warn("email delivery failed",
			zap.String("email_id", id),
			zap.String("recipient", email.Recipient),
			zap.Error(sendErr))

		if deleteOnFailure {
			if err := q.store.DeleteEmail(id); err != nil {
				return fmt.Errorf("delete failed email %s: %w", id, err)
			}
		}
		if q.claimer != nil {
			_ = q.claimer.Release(ctx, id)
		}

		failureElapsed += q.clock.Now().Sub(start)
		if failureElapsed > budget {
			q.metrics.RecordDrainAbort()
			q.log.Warn("drain aborted, failure budget exhausted",
				zap.Duration("elapsed", failureElapsed),
				zap.Duration("budget", budget))
			break
		}
	}

	if depth, err := q.store.QueueDepth(); err == nil {
		q.metrics.UpdateQueueDepth(depth)
	}
	return nil
}
