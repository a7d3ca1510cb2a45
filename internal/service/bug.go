package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bugtrack/backend/internal/cache"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/storage"
)

var (
	// ErrBlankSummary 缺陷摘要不能为空
	ErrBlankSummary = errors.New("bug summary cannot be blank")
	// ErrSelfRelationship 缺陷不能与自身建立关系
	ErrSelfRelationship = errors.New("bug cannot relate to itself")
)

// BugService 缺陷生命周期服务。
//
// 状态、指派、优先级等变更在落库后映射为对应的通知事件交给派发器，
// 解决/关闭还会向未解决的父缺陷级联提示。
type BugService struct {
	store      storage.Store
	notes      *cache.NoteCache
	dispatcher *notify.Dispatcher
	cfg        *config.Config
	log        *zap.Logger
}

// NewBugService 创建缺陷服务。
func NewBugService(store storage.Store, notes *cache.NoteCache, dispatcher *notify.Dispatcher, cfg *config.Config, log *zap.Logger) *BugService {
	return &BugService{
		store:      store,
		notes:      notes,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

// ReportBugInput 新建缺陷的输入参数。
type ReportBugInput struct {
	ProjectID   int
	ReporterID  int
	HandlerID   int
	Summary     string
	Description string
	Severity    domain.Severity
	Priority    domain.Priority
	ViewState   domain.ViewState
	CategoryID  int
}

// Report 新建缺陷并通知。
func (s *BugService) Report(input ReportBugInput) (*domain.Bug, error) {
	if input.Summary == "" {
		return nil, ErrBlankSummary
	}
	if _, err := s.store.GetProject(input.ProjectID); err != nil {
		return nil, fmt.Errorf("report bug in project %d: %w", input.ProjectID, err)
	}

	now := time.Now().UTC()
	bug := &domain.Bug{
		ProjectID:     input.ProjectID,
		ReporterID:    input.ReporterID,
		HandlerID:     input.HandlerID,
		Status:        domain.StatusNew,
		Severity:      input.Severity,
		Priority:      input.Priority,
		Resolution:    domain.ResolutionOpen,
		ViewState:     input.ViewState,
		CategoryID:    input.CategoryID,
		Summary:       input.Summary,
		Description:   input.Description,
		DateSubmitted: now,
		LastUpdated:   now,
	}
	if bug.Severity == 0 {
		bug.Severity = domain.SeverityMinor
	}
	if bug.Priority == 0 {
		bug.Priority = domain.PriorityNormal
	}
	if bug.ViewState == 0 {
		bug.ViewState = domain.ViewPublic
	}
	if input.HandlerID != 0 {
		bug.Status = domain.StatusAssigned
	}
	if err := s.store.SaveBug(bug); err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}
	s.recordHistory(bug.ID, input.ReporterID, "bug_reported", "", "", now)

	if err := s.dispatcher.Notify(input.ReporterID, bug.ID, domain.NotifyNew, "", nil, nil); err != nil {
		return nil, err
	}
	return bug, nil
}

// AssignHandler 指派或改派处理人，handlerID 为 0 表示取消指派。
func (s *BugService) AssignHandler(actingUserID, bugID, handlerID int) error {
	bug, err := s.store.GetBug(bugID)
	if err != nil {
		return fmt.Errorf("assign bug %d: %w", bugID, err)
	}
	if bug.HandlerID == handlerID {
		return nil
	}
	if handlerID != 0 {
		if _, err := s.store.GetUser(handlerID); err != nil {
			return fmt.Errorf("assign bug %d to user %d: %w", bugID, handlerID, err)
		}
	}

	old := bug.HandlerID
	bug.HandlerID = handlerID
	if handlerID != 0 && bug.Status < domain.StatusAssigned {
		bug.Status = domain.StatusAssigned
	}
	now := time.Now().UTC()
	bug.LastUpdated = now
	if err := s.store.UpdateBug(bug); err != nil {
		return fmt.Errorf("assign bug %d: %w", bugID, err)
	}
	s.recordHistory(bugID, actingUserID, "handler_id", strconv.Itoa(old), strconv.Itoa(handlerID), now)

	return s.dispatcher.Notify(actingUserID, bugID, domain.NotifyOwner, "", nil, nil)
}

// SetStatus 变更缺陷状态并按状态迁移派发对应类型的通知。
//
// 达到解决/关闭门限时同时向仍未解决的父缺陷级联提示。
func (s *BugService) SetStatus(actingUserID, bugID int, status domain.BugStatus, resolution domain.Resolution) error {
	bug, err := s.store.GetBug(bugID)
	if err != nil {
		return fmt.Errorf("set status of bug %d: %w", bugID, err)
	}
	if bug.Status == status && (resolution == 0 || bug.Resolution == resolution) {
		return nil
	}

	old := bug.Status
	bug.Status = status
	if resolution != 0 {
		bug.Resolution = resolution
	} else if old >= s.cfg.Access.ResolvedStatusThreshold && status < s.cfg.Access.ResolvedStatusThreshold {
		bug.Resolution = domain.ResolutionReopened
	}
	now := time.Now().UTC()
	bug.LastUpdated = now
	if err := s.store.UpdateBug(bug); err != nil {
		return fmt.Errorf("set status of bug %d: %w", bugID, err)
	}
	s.recordHistory(bugID, actingUserID, "status", strconv.Itoa(int(old)), strconv.Itoa(int(status)), now)

	event := s.statusEvent(old, status)
	if err := s.dispatcher.Notify(actingUserID, bugID, event, "", nil, nil); err != nil {
		return err
	}
	switch event {
	case domain.NotifyResolved:
		return s.dispatcher.RelationshipChildResolved(actingUserID, bugID)
	case domain.NotifyClosed:
		return s.dispatcher.RelationshipChildClosed(actingUserID, bugID)
	}
	return nil
}

// SetPriority 变更缺陷优先级。
func (s *BugService) SetPriority(actingUserID, bugID int, priority domain.Priority) error {
	bug, err := s.store.GetBug(bugID)
	if err != nil {
		return fmt.Errorf("set priority of bug %d: %w", bugID, err)
	}
	if bug.Priority == priority {
		return nil
	}

	old := bug.Priority
	bug.Priority = priority
	now := time.Now().UTC()
	bug.LastUpdated = now
	if err := s.store.UpdateBug(bug); err != nil {
		return fmt.Errorf("set priority of bug %d: %w", bugID, err)
	}
	s.recordHistory(bugID, actingUserID, "priority", strconv.Itoa(int(old)), strconv.Itoa(int(priority)), now)

	return s.dispatcher.Notify(actingUserID, bugID, domain.NotifyPriority, "", nil, nil)
}

// Monitor 把用户加入缺陷监视列表并向其发送确认邮件。
func (s *BugService) Monitor(actingUserID, bugID, userID int) error {
	if _, err := s.store.GetBug(bugID); err != nil {
		return fmt.Errorf("monitor bug %d: %w", bugID, err)
	}
	if _, err := s.store.GetUser(userID); err != nil {
		return fmt.Errorf("monitor bug %d for user %d: %w", bugID, userID, err)
	}
	if err := s.store.AddMonitor(bugID, userID); err != nil {
		return fmt.Errorf("monitor bug %d: %w", bugID, err)
	}
	return s.dispatcher.MonitorAdded(actingUserID, bugID, userID)
}

// Unmonitor 把用户移出缺陷监视列表，不发通知。
func (s *BugService) Unmonitor(bugID, userID int) error {
	if err := s.store.RemoveMonitor(bugID, userID); err != nil {
		return fmt.Errorf("unmonitor bug %d: %w", bugID, err)
	}
	return nil
}

// AddRelationship 在两个缺陷间建立关系并通知双方干系人。
//
// 目标缺陷按互补类型收到通知，比如 A 是 B 的父缺陷时 B 侧提示依赖。
func (s *BugService) AddRelationship(actingUserID, bugID, destBugID int, relType domain.RelationType) error {
	if bugID == destBugID {
		return ErrSelfRelationship
	}
	if !relType.Valid() {
		return domain.ErrRelationshipNotFound
	}
	if _, err := s.store.GetBug(bugID); err != nil {
		return fmt.Errorf("relate bug %d: %w", bugID, err)
	}
	if _, err := s.store.GetBug(destBugID); err != nil {
		return fmt.Errorf("relate bug %d to %d: %w", bugID, destBugID, err)
	}

	rel := &domain.Relationship{SourceBugID: bugID, DestBugID: destBugID, Type: relType}
	if err := s.store.SaveRelationship(rel); err != nil {
		return fmt.Errorf("relate bug %d to %d: %w", bugID, destBugID, err)
	}
	s.recordHistory(bugID, actingUserID, "relationship_added", "", strconv.Itoa(destBugID), time.Now().UTC())

	if err := s.dispatcher.RelationshipAdded(actingUserID, bugID, relType, destBugID); err != nil {
		return err
	}
	return s.dispatcher.RelationshipAdded(actingUserID, destBugID, complementRelation(relType), bugID)
}

// DeleteRelationship 解除缺陷关系并通知双方干系人。
func (s *BugService) DeleteRelationship(actingUserID, relationshipID int) error {
	rel, err := s.store.GetRelationship(relationshipID)
	if err != nil {
		return fmt.Errorf("delete relationship %d: %w", relationshipID, err)
	}
	if err := s.store.DeleteRelationship(relationshipID); err != nil {
		return fmt.Errorf("delete relationship %d: %w", relationshipID, err)
	}
	s.recordHistory(rel.SourceBugID, actingUserID, "relationship_deleted", strconv.Itoa(rel.DestBugID), "", time.Now().UTC())

	if err := s.dispatcher.RelationshipDeleted(actingUserID, rel.SourceBugID, rel.Type, rel.DestBugID); err != nil {
		return err
	}
	return s.dispatcher.RelationshipDeleted(actingUserID, rel.DestBugID, complementRelation(rel.Type), rel.SourceBugID)
}

// Sponsor 记录对缺陷的赞助并通知。
func (s *BugService) Sponsor(userID, bugID, amount int) error {
	if !s.cfg.Access.EnableSponsorship {
		return nil
	}
	if _, err := s.store.GetBug(bugID); err != nil {
		return fmt.Errorf("sponsor bug %d: %w", bugID, err)
	}
	err := s.store.SaveSponsorship(&domain.Sponsorship{
		BugID:         bugID,
		UserID:        userID,
		Amount:        amount,
		DateSubmitted: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("sponsor bug %d: %w", bugID, err)
	}
	return s.dispatcher.Notify(userID, bugID, domain.NotifySponsor, "", nil, nil)
}

// Delete 删除缺陷及其注释。删除通知在数据消失前解析并入队。
func (s *BugService) Delete(actingUserID, bugID int) error {
	if _, err := s.store.GetBug(bugID); err != nil {
		return fmt.Errorf("delete bug %d: %w", bugID, err)
	}

	if err := s.dispatcher.Notify(actingUserID, bugID, domain.NotifyDeleted, "", nil, nil); err != nil {
		return err
	}
	if _, err := s.store.DeleteNotesForBug(bugID); err != nil {
		return fmt.Errorf("delete notes of bug %d: %w", bugID, err)
	}
	if err := s.store.DeleteBug(bugID); err != nil {
		return fmt.Errorf("delete bug %d: %w", bugID, err)
	}
	s.notes.InvalidateBug(bugID)
	return nil
}

// statusEvent 把状态迁移映射为通知事件类型。
func (s *BugService) statusEvent(from, to domain.BugStatus) domain.NotifyType {
	resolved := s.cfg.Access.ResolvedStatusThreshold
	switch {
	case to >= domain.StatusClosed:
		return domain.NotifyClosed
	case to >= resolved:
		return domain.NotifyResolved
	case from >= resolved && to < resolved:
		return domain.NotifyReopened
	case to == domain.StatusFeedback:
		return domain.NotifyFeedback
	default:
		return domain.NotifyUpdated
	}
}

// complementRelation 返回从目标缺陷视角看到的关系类型。
func complementRelation(t domain.RelationType) domain.RelationType {
	switch t {
	case domain.RelationParentOf:
		return domain.RelationDependantOn
	case domain.RelationDependantOn:
		return domain.RelationParentOf
	case domain.RelationDuplicateOf:
		return domain.RelationHasDuplicate
	case domain.RelationHasDuplicate:
		return domain.RelationDuplicateOf
	default:
		return domain.RelationRelatedTo
	}
}

func (s *BugService) recordHistory(bugID, userID int, field, oldValue, newValue string, when time.Time) {
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
