package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// SaveNote 保存注释：先插正文行，再插元数据行。
func (s *Store) SaveNote(note *domain.Note) error {
	now := time.Now().UTC()
	if note.DateSubmitted.IsZero() {
		note.DateSubmitted = now
	}
	if note.LastModified.IsZero() {
		note.LastModified = note.DateSubmitted
	}
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		text := domain.NoteText{Note: note.Text}
		if err := tx.Create(&text).Error; err != nil {
			return err
		}
		note.TextID = text.ID
		return tx.Create(note).Error
	})
}

// GetNote 根据 ID 获取注释，正文联表填充。
func (s *Store) GetNote(id int) (*domain.Note, error) {
	var note domain.Note
	err := s.gormDB.Model(&domain.Note{}).
		Select("notes.*, note_texts.note AS text").
		Joins("LEFT JOIN note_texts ON note_texts.id = notes.text_id").
		Where("notes.id = ?", id).
		First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

// ListNotes 返回缺陷下全部注释，按提交时间升序，同刻按 ID 升序。
func (s *Store) ListNotes(bugID int) ([]domain.Note, error) {
	var notes []domain.Note
	err := s.gormDB.Model(&domain.Note{}).
		Select("notes.*, note_texts.note AS text").
		Joins("LEFT JOIN note_texts ON note_texts.id = notes.text_id").
		Where("notes.bug_id = ?", bugID).
		Order("notes.date_submitted ASC, notes.id ASC").
		Find(&notes).Error
	return notes, err
}

// SetNoteText 覆盖注释正文并刷新 last_modified。
func (s *Store) SetNoteText(noteID int, text string, when time.Time) error {
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		var note domain.Note
		if err := tx.First(&note, noteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNoteNotFound
			}
			return err
		}
		if err := tx.Model(&domain.NoteText{}).Where("id = ?", note.TextID).
			Update("note", text).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Note{}).Where("id = ?", noteID).
			Update("last_modified", when).Error
	})
}

// SetNoteViewState 设置注释可见性。
func (s *Store) SetNoteViewState(noteID int, state domain.ViewState) error {
	result := s.gormDB.Model(&domain.Note{}).Where("id = ?", noteID).Update("view_state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNoteNotFound
	}
	return nil
}

// SetNoteTimeTracking 更新注释的工时分钟数。
func (s *Store) SetNoteTimeTracking(noteID int, minutes int) error {
	result := s.gormDB.Model(&domain.Note{}).Where("id = ?", noteID).Update("time_tracking", minutes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNoteNotFound
	}
	return nil
}

// DeleteNote 删除注释及其正文行。
func (s *Store) DeleteNote(id int) error {
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		var note domain.Note
		if err := tx.First(&note, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNoteNotFound
			}
			return err
		}
		if err := tx.Delete(&domain.NoteText{}, note.TextID).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Note{}, id).Error
	})
}

// DeleteNotesForBug 删除缺陷下全部注释及正文，返回删除数量。
func (s *Store) DeleteNotesForBug(bugID int) (int, error) {
	var count int
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		var textIDs []int
		if err := tx.Model(&domain.Note{}).Where("bug_id = ?", bugID).
			Pluck("text_id", &textIDs).Error; err != nil {
			return err
		}
		if len(textIDs) > 0 {
			if err := tx.Delete(&domain.NoteText{}, textIDs).Error; err != nil {
				return err
			}
		}
		result := tx.Where("bug_id = ?", bugID).Delete(&domain.Note{})
		count = int(result.RowsAffected)
		return result.Error
	})
	return count, err
}

// NoteAuthors 返回缺陷下注释作者的去重用户 ID。
func (s *Store) NoteAuthors(bugID int) ([]int, error) {
	var ids []int
	err := s.gormDB.Model(&domain.Note{}).Distinct("reporter_id").
		Where("bug_id = ?", bugID).Order("reporter_id").Pluck("reporter_id", &ids).Error
	return ids, err
}
