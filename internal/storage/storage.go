package storage

import (
	"errors"
	"time"

	"bugtrack/backend/internal/domain"
)

var (
	// ErrBugNotFound 缺陷未找到错误
	ErrBugNotFound = errors.New("bug not found")
	// ErrNoteNotFound 注释未找到错误
	ErrNoteNotFound = errors.New("note not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrProjectNotFound 项目未找到错误
	ErrProjectNotFound = errors.New("project not found")
	// ErrEmailNotFound 队列邮件未找到错误；drain 过程中视为已被其他进程投递
	ErrEmailNotFound = errors.New("queued email not found")
	// ErrRelationshipExists 两缺陷间已存在关系
	ErrRelationshipExists = errors.New("relationship already exists")
	// ErrRelationshipNotFound 关系记录未找到错误
	ErrRelationshipNotFound = errors.New("relationship not found")
)

// BugFieldValue 自定义字段定义与某缺陷上的取值。
type BugFieldValue struct {
	Field domain.CustomField
	Value string
}

// BugRepository 定义缺陷数据存取操作。
type BugRepository interface {
	SaveBug(bug *domain.Bug) error
	GetBug(id int) (*domain.Bug, error)
	UpdateBug(bug *domain.Bug) error
	TouchBug(id int, when time.Time) error // 只刷新 last_updated
	DeleteBug(id int) error
}

// NoteRepository 定义注释数据存取操作。
//
// 注释正文独立成行；ListNotes 返回按提交时间升序、同刻按 ID 升序
// 的完整注释（含联表取出的正文）。
type NoteRepository interface {
	SaveNote(note *domain.Note) error
	GetNote(id int) (*domain.Note, error)
	ListNotes(bugID int) ([]domain.Note, error)
	SetNoteText(noteID int, text string, when time.Time) error
	SetNoteViewState(noteID int, state domain.ViewState) error
	SetNoteTimeTracking(noteID int, minutes int) error
	DeleteNote(id int) error
	DeleteNotesForBug(bugID int) (int, error)
	NoteAuthors(bugID int) ([]int, error)
}

// UserRepository 定义用户与通知偏好数据存取操作。
type UserRepository interface {
	SaveUser(user *domain.User) error
	GetUser(id int) (*domain.User, error)
	// GetPreference 取用户在项目下的偏好；无项目级行时退回全局行，
	// 全局行也不存在时返回默认偏好。
	GetPreference(userID, projectID int) (*domain.UserPreference, error)
	SavePreference(pref *domain.UserPreference) error
}

// ProjectRepository 定义项目与成员角色数据存取操作。
type ProjectRepository interface {
	SaveProject(project *domain.Project) error
	GetProject(id int) (*domain.Project, error)
	SetProjectAccess(projectID, userID int, level domain.AccessLevel) error
	// ProjectAccessLevel 取用户在项目中的有效级别：项目级行优先，
	// 否则退回用户全局级别。
	ProjectAccessLevel(userID, projectID int) (domain.AccessLevel, error)
	MembersWithRoleAtLeast(projectID int, min domain.AccessLevel) ([]domain.ProjectUser, error)
}

// MonitorRepository 定义缺陷监视关系存取操作。
type MonitorRepository interface {
	AddMonitor(bugID, userID int) error
	RemoveMonitor(bugID, userID int) error
	MonitorsForBug(bugID int) ([]int, error)
}

// RelationshipRepository 定义缺陷关系存取操作。
type RelationshipRepository interface {
	SaveRelationship(rel *domain.Relationship) error
	GetRelationship(id int) (*domain.Relationship, error)
	DeleteRelationship(id int) error
	RelationshipsForBug(bugID int) ([]domain.Relationship, error)
	// RelationshipsToBug 返回以给定缺陷为目标的所有关系（父缺陷查找）。
	RelationshipsToBug(destBugID int) ([]domain.Relationship, error)
}

// HistoryRepository 定义变更历史存取操作。
type HistoryRepository interface {
	RecordHistory(event *domain.HistoryEvent) error
	HistoryForBug(bugID int) ([]domain.HistoryEvent, error)
}

// SponsorshipRepository 定义赞助数据存取操作。
type SponsorshipRepository interface {
	SaveSponsorship(s *domain.Sponsorship) error
	SponsorshipsForBug(bugID int) ([]domain.Sponsorship, error)
}

// CustomFieldRepository 定义自定义字段存取操作。
type CustomFieldRepository interface {
	SaveCustomField(field *domain.CustomField) error
	SetCustomFieldValue(fieldID, bugID int, value string) error
	FieldsForBug(bugID int) ([]BugFieldValue, error)
}

// EmailQueueRepository 定义通知邮件队列存取操作。
//
// PendingEmailIDs 每次调用重新查询，按入队时间排序；Get 在并发
// drain 下可能返回 ErrEmailNotFound，调用方应视为已投递而非错误。
type EmailQueueRepository interface {
	EnqueueEmail(email *domain.QueuedEmail) error
	PendingEmailIDs() ([]string, error)
	GetEmail(id string) (*domain.QueuedEmail, error)
	DeleteEmail(id string) error
	QueueDepth() (int, error)
}

// Store 定义完整的存储接口。
type Store interface {
	BugRepository
	NoteRepository
	UserRepository
	ProjectRepository
	MonitorRepository
	RelationshipRepository
	HistoryRepository
	SponsorshipRepository
	CustomFieldRepository
	EmailQueueRepository

	// 工具方法
	Close() error
	Health() error
}
