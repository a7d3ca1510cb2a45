package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/cache"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/storage"
)

var (
	// ErrBlankNoteText 注释正文不能为空
	ErrBlankNoteText = errors.New("note text cannot be blank")
	// ErrTimeTrackingDisabled 工时功能未启用
	ErrTimeTrackingDisabled = errors.New("time tracking is disabled")
	// ErrViewStateDenied 权限不足以设置私有可见性
	ErrViewStateDenied = errors.New("insufficient access to set private view state")
)

// RevisionArchiver 在注释正文被覆盖前归档旧文本。
type RevisionArchiver func(noteID int, oldText string, when time.Time)

// NoteService 注释的增删改服务。
//
// 每次写操作都整体失效该缺陷的注释缓存并刷新缺陷的最后更新时间，
// 需要时再触发通知派发。
type NoteService struct {
	store      storage.Store
	notes      *cache.NoteCache
	dispatcher *notify.Dispatcher
	cfg        *config.Config
	archiver   RevisionArchiver
	log        *zap.Logger
}

// NewNoteService 创建注释服务，archiver 可为 nil。
func NewNoteService(store storage.Store, notes *cache.NoteCache, dispatcher *notify.Dispatcher, cfg *config.Config, archiver RevisionArchiver, log *zap.Logger) *NoteService {
	return &NoteService{
		store:      store,
		notes:      notes,
		dispatcher: dispatcher,
		cfg:        cfg,
		archiver:   archiver,
		log:        log,
	}
}

// AddNoteInput 新增注释的输入参数。
type AddNoteInput struct {
	BugID        int
	ReporterID   int
	Text         string
	ViewState    domain.ViewState
	Type         domain.NoteType
	Attr         string // 提醒类型时为 | 分隔的收件人 ID
	TimeTracking int    // 分钟数
}

// Add 新增一条注释并派发通知。
//
// 空正文只有两种豁免：允许无正文的工时注释，以及提醒注释。提醒
// 走定向派发而不走常规收件解析。
func (s *NoteService) Add(input AddNoteInput) (*domain.Note, error) {
	if _, err := s.store.GetBug(input.BugID); err != nil {
		return nil, fmt.Errorf("add note to bug %d: %w", input.BugID, err)
	}

	if input.TimeTracking > 0 && !s.cfg.Access.TimeTrackingEnabled {
		return nil, ErrTimeTrackingDisabled
	}
	if input.Text == "" {
		timeTrackingExempt := input.Type == domain.NoteTimeTracking &&
			input.TimeTracking > 0 && s.cfg.Access.TimeTrackingWithoutNote
		if !timeTrackingExempt && input.Type != domain.NoteReminder {
			return nil, ErrBlankNoteText
		}
	}
	if input.ViewState.IsPrivate() {
		if err := s.requireViewStateAccess(input.ReporterID, input.BugID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	note := &domain.Note{
		BugID:         input.BugID,
		ReporterID:    input.ReporterID,
		ViewState:     input.ViewState,
		Type:          input.Type,
		Attr:          input.Attr,
		TimeTracking:  input.TimeTracking,
		Text:          input.Text,
		DateSubmitted: now,
		LastModified:  now,
	}
	if note.ViewState == 0 {
		note.ViewState = domain.ViewPublic
	}
	if err := s.store.SaveNote(note); err != nil {
		return nil, fmt.Errorf("save note on bug %d: %w", input.BugID, err)
	}
	s.afterMutation(input.BugID, now)
	s.recordHistory(input.BugID, input.ReporterID, "note_added", "", domain.FormatBugID(note.ID, s.cfg.Email.NoteIDPadding), now)

	if note.Type == domain.NoteReminder {
		if err := s.dispatcher.Reminder(input.ReporterID, note.ReminderRecipients(), input.BugID, input.Text); err != nil {
			return nil, err
		}
		return note, nil
	}
	if err := s.dispatcher.Notify(input.ReporterID, input.BugID, domain.NotifyNote, "", nil, nil); err != nil {
		return nil, err
	}
	return note, nil
}

// Delete 删除一条注释及其正文行。
func (s *NoteService) Delete(actingUserID, noteID int) error {
	note, err := s.store.GetNote(noteID)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", noteID, err)
	}

	if err := s.store.DeleteNote(noteID); err != nil {
		return fmt.Errorf("delete note %d: %w", noteID, err)
	}
	now := time.Now().UTC()
	s.afterMutation(note.BugID, now)
	s.recordHistory(note.BugID, actingUserID, "note_deleted", domain.FormatBugID(noteID, s.cfg.Email.NoteIDPadding), "", now)
	return nil
}

// DeleteAll 删除某缺陷的全部注释，随缺陷删除一起调用。
func (s *NoteService) DeleteAll(bugID int) (int, error) {
	count, err := s.store.DeleteNotesForBug(bugID)
	if err != nil {
		return 0, fmt.Errorf("delete notes of bug %d: %w", bugID, err)
	}
	s.notes.InvalidateBug(bugID)
	return count, nil
}

// SetText 覆盖注释正文，旧文本先交给归档回调。
func (s *NoteService) SetText(actingUserID, noteID int, text string) error {
	if text == "" {
		return ErrBlankNoteText
	}
	note, err := s.store.GetNote(noteID)
	if err != nil {
		return fmt.Errorf("set text of note %d: %w", noteID, err)
	}
	if note.Text == text {
		return nil
	}

	now := time.Now().UTC()
	if s.archiver != nil {
		s.archiver(noteID, note.Text, now)
	}
	if err := s.store.SetNoteText(noteID, text, now); err != nil {
		return fmt.Errorf("set text of note %d: %w", noteID, err)
	}
	s.afterMutation(note.BugID, now)
	s.recordHistory(note.BugID, actingUserID, "note_edited", domain.FormatBugID(noteID, s.cfg.Email.NoteIDPadding), "", now)
	return nil
}

// SetViewState 切换注释可见性。
func (s *NoteService) SetViewState(actingUserID, noteID int, state domain.ViewState) error {
	note, err := s.store.GetNote(noteID)
	if err != nil {
		return fmt.Errorf("set view state of note %d: %w", noteID, err)
	}
	if note.ViewState == state {
		return nil
	}
	if state.IsPrivate() {
		if err := s.requireViewStateAccess(actingUserID, note.BugID); err != nil {
			return err
		}
	}

	if err := s.store.SetNoteViewState(noteID, state); err != nil {
		return fmt.Errorf("set view state of note %d: %w", noteID, err)
	}
	now := time.Now().UTC()
	s.afterMutation(note.BugID, now)
	return nil
}

// SetTimeTracking 修改注释上的工时分钟数。
func (s *NoteService) SetTimeTracking(actingUserID, noteID, minutes int) error {
	if !s.cfg.Access.TimeTrackingEnabled {
		return ErrTimeTrackingDisabled
	}
	note, err := s.store.GetNote(noteID)
	if err != nil {
		return fmt.Errorf("set time tracking of note %d: %w", noteID, err)
	}

	if err := s.store.SetNoteTimeTracking(noteID, minutes); err != nil {
		return fmt.Errorf("set time tracking of note %d: %w", noteID, err)
	}
	s.afterMutation(note.BugID, time.Now().UTC())
	return nil
}

// Latest 取某缺陷最近提交的注释，没有注释时返回 nil。
func (s *NoteService) Latest(bugID int) (*domain.Note, error) {
	notes, err := s.notes.ListNotes(bugID)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	last := notes[len(notes)-1]
	return &last, nil
}

// requireViewStateAccess 校验用户是否有权把注释设为私有。
func (s *NoteService) requireViewStateAccess(userID, bugID int) error {
	bug, err := s.store.GetBug(bugID)
	if err != nil {
		return err
	}
	policy := access.NewPolicy(s.store, s.cfg.Access)
	ok, err := policy.HasProjectLevel(userID, bug.ProjectID, s.cfg.Access.SetViewStatusThreshold)
	if err != nil {
		return err
	}
	if !ok {
		return ErrViewStateDenied
	}
	return nil
}

// afterMutation 写后清缓存并刷新缺陷时间戳。
func (s *NoteService) afterMutation(bugID int, when time.Time) {
	s.notes.InvalidateBug(bugID)
	if err := s.store.TouchBug(bugID, when); err != nil {
		s.log.Warn("touch bug failed", zap.Int("bug_id", bugID), zap.Error(err))
	}
}

func (s *NoteService) recordHistory(bugID, userID int, field, oldValue, newValue string, when time.Time) {
	err := s.store.RecordHistory(&domain.HistoryEvent{
		BugID:    bugID,
		UserID:   userID,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		Date:     when,
	})
	if err != nil {
		s.log.Warn("record history failed", zap.Int("bug_id", bugID), zap.Error(err))
	}
}
