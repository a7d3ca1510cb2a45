package memory

import (
	"sort"
	"time"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// SaveNote 保存注释及其正文行，ID 为 0 时自动分配。
func (s *Store) SaveNote(note *domain.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == 0 {
		s.nextNoteID++
		note.ID = s.nextNoteID
	}
	if note.TextID == 0 {
		s.nextTextID++
		note.TextID = s.nextTextID
	}
	now := time.Now().UTC()
	if note.DateSubmitted.IsZero() {
		note.DateSubmitted = now
	}
	if note.LastModified.IsZero() {
		note.LastModified = note.DateSubmitted
	}
	s.noteTexts[note.TextID] = note.Text
	copied := *note
	s.notes[note.ID] = &copied
	s.notesByBug[note.BugID] = append(s.notesByBug[note.BugID], note.ID)
	return nil
}

// GetNote 根据 ID 获取注释，正文一并填充。
func (s *Store) GetNote(id int) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, storage.ErrNoteNotFound
	}
	copied := *note
	copied.Text = s.noteTexts[note.TextID]
	return &copied, nil
}

// ListNotes 返回缺陷下全部注释，按提交时间升序，同刻按 ID 升序。
func (s *Store) ListNotes(bugID int) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.notesByBug[bugID]
	notes := make([]domain.Note, 0, len(ids))
	for _, id := range ids {
		note, ok := s.notes[id]
		if !ok {
			continue
		}
		copied := *note
		copied.Text = s.noteTexts[note.TextID]
		notes = append(notes, copied)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].DateSubmitted.Equal(notes[j].DateSubmitted) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].DateSubmitted.Before(notes[j].DateSubmitted)
	})
	return notes, nil
}

// SetNoteText 覆盖注释正文并刷新 last_modified。
func (s *Store) SetNoteText(noteID int, text string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[noteID]
	if !ok {
		return storage.ErrNoteNotFound
	}
	s.noteTexts[note.TextID] = text
	note.LastModified = when
	return nil
}

// SetNoteViewState 设置注释可见性。
func (s *Store) SetNoteViewState(noteID int, state domain.ViewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[noteID]
	if !ok {
		return storage.ErrNoteNotFound
	}
	note.ViewState = state
	return nil
}

// SetNoteTimeTracking 更新注释的工时分钟数。
func (s *Store) SetNoteTimeTracking(noteID int, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[noteID]
	if !ok {
		return storage.ErrNoteNotFound
	}
	note.TimeTracking = minutes
	return nil
}

// DeleteNote 删除注释及其正文行。
func (s *Store) DeleteNote(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return storage.ErrNoteNotFound
	}
	delete(s.noteTexts, note.TextID)
	delete(s.notes, id)
	ids := s.notesByBug[note.BugID]
	for i, nid := range ids {
		if nid == id {
			s.notesByBug[note.BugID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteNotesForBug 删除缺陷下全部注释，返回删除数量。
func (s *Store) DeleteNotesForBug(bugID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.notesByBug[bugID]
	for _, id := range ids {
		if note, ok := s.notes[id]; ok {
			delete(s.noteTexts, note.TextID)
			delete(s.notes, id)
		}
	}
	delete(s.notesByBug, bugID)
	return len(ids), nil
}

// NoteAuthors 返回缺陷下注释作者的去重用户 ID。
func (s *Store) NoteAuthors(bugID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	var authors []int
	for _, id := range s.notesByBug[bugID] {
		note, ok := s.notes[id]
		if !ok || seen[note.ReporterID] {
			continue
		}
		seen[note.ReporterID] = true
		authors = append(authors, note.ReporterID)
	}
	sort.Ints(authors)
	return authors, nil
}
