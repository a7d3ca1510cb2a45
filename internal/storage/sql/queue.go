package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// EnqueueEmail 入队一封通知邮件。
func (s *Store) EnqueueEmail(email *domain.QueuedEmail) error {
	if email.SubmittedAt.IsZero() {
		email.SubmittedAt = time.Now().UTC()
	}
	return s.gormDB.Create(email).Error
}

// PendingEmailIDs 返回待投递邮件 ID，按入队时间升序。每次调用重新查询。
func (s *Store) PendingEmailIDs() ([]string, error) {
	var ids []string
	err := s.gormDB.Model(&domain.QueuedEmail{}).
		Order("submitted_at ASC, id ASC").Pluck("id", &ids).Error
	return ids, err
}

// GetEmail 根据 ID 获取队列邮件。
//
// 并发 drain 下返回 ErrEmailNotFound 属正常情况（已被其他进程投递）。
func (s *Store) GetEmail(id string) (*domain.QueuedEmail, error) {
	var email domain.QueuedEmail
	if err := s.gormDB.First(&email, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrEmailNotFound
		}
		return nil, err
	}
	return &email, nil
}

// DeleteEmail 从队列删除邮件，不存在时静默成功。
func (s *Store) DeleteEmail(id string) error {
	return s.gormDB.Delete(&domain.QueuedEmail{}, "id = ?", id).Error
}

// QueueDepth 返回当前队列深度。
func (s *Store) QueueDepth() (int, error) {
	var count int64
	err := s.gormDB.Model(&domain.QueuedEmail{}).Count(&count).Error
	return int(count), err
}
