package memory

import (
	"sort"
	"time"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// EnqueueEmail 入队一封通知邮件。
func (s *Store) EnqueueEmail(email *domain.QueuedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if email.SubmittedAt.IsZero() {
		email.SubmittedAt = time.Now().UTC()
	}
	copied := *email
	s.queue[email.ID] = &copied
	return nil
}

// PendingEmailIDs 返回待投递邮件 ID，按入队时间升序。每次调用重新快照。
func (s *Store) PendingEmailIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]*domain.QueuedEmail, 0, len(s.queue))
	for _, e := range s.queue {
		emails = append(emails, e)
	}
	sort.Slice(emails, func(i, j int) bool {
		if emails[i].SubmittedAt.Equal(emails[j].SubmittedAt) {
			return emails[i].ID < emails[j].ID
		}
		return emails[i].SubmittedAt.Before(emails[j].SubmittedAt)
	})
	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	return ids, nil
}

// GetEmail 根据 ID 获取队列邮件。
func (s *Store) GetEmail(id string) (*domain.QueuedEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.queue[id]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	copied := *email
	return &copied, nil
}

// DeleteEmail 从队列删除邮件，不存在时静默成功。
func (s *Store) DeleteEmail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.queue, id)
	return nil
}

// QueueDepth 返回当前队列深度。
func (s *Store) QueueDepth() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.queue), nil
}
