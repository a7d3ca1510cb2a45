package domain

import (
	"fmt"
	"time"
)

// BugStatus 缺陷状态，数值有序，越大越接近关闭。
type BugStatus int

const (
	StatusNew          BugStatus = 10
	StatusFeedback     BugStatus = 20
	StatusAcknowledged BugStatus = 30
	StatusConfirmed    BugStatus = 40
	StatusAssigned     BugStatus = 50
	StatusResolved     BugStatus = 80
	StatusClosed       BugStatus = 90
)

// Severity 缺陷严重程度，数值有序。
type Severity int

const (
	SeverityFeature Severity = 10
	SeverityTrivial Severity = 20
	SeverityText    Severity = 30
	SeverityTweak   Severity = 40
	SeverityMinor   Severity = 50
	SeverityMajor   Severity = 60
	SeverityCrash   Severity = 70
	SeverityBlock   Severity = 80
)

// Priority 缺陷优先级。
type Priority int

const (
	PriorityNone      Priority = 10
	PriorityLow       Priority = 20
	PriorityNormal    Priority = 30
	PriorityHigh      Priority = 40
	PriorityUrgent    Priority = 50
	PriorityImmediate Priority = 60
)

// Resolution 缺陷处理结论。
type Resolution int

const (
	ResolutionOpen              Resolution = 10
	ResolutionFixed             Resolution = 20
	ResolutionReopened          Resolution = 30
	ResolutionUnableToDuplicate Resolution = 40
	ResolutionNotFixable        Resolution = 50
	ResolutionDuplicate         Resolution = 60
	ResolutionNotABug           Resolution = 70
	ResolutionSuspended         Resolution = 80
	ResolutionWontFix           Resolution = 90
)

// ViewState 可见性，公开或私有。
type ViewState int

const (
	ViewPublic  ViewState = 10
	ViewPrivate ViewState = 50
)

// IsPrivate 判断是否为私有可见性。
func (v ViewState) IsPrivate() bool {
	return v == ViewPrivate
}

// Bug 表示一个缺陷记录。
type Bug struct {
	ID            int        `json:"id" gorm:"primaryKey;autoIncrement"`
	ProjectID     int        `json:"projectId" gorm:"index;not null"`
	ReporterID    int        `json:"reporterId" gorm:"index;not null"`
	HandlerID     int        `json:"handlerId" gorm:"index"` // 0 表示未指派
	Status        BugStatus  `json:"status" gorm:"default:10;index"`
	Severity      Severity   `json:"severity" gorm:"default:50"`
	Priority      Priority   `json:"priority" gorm:"default:30"`
	Resolution    Resolution `json:"resolution" gorm:"default:10"`
	ViewState     ViewState  `json:"viewState" gorm:"default:10"`
	CategoryID    int        `json:"categoryId"`
	Summary       string     `json:"summary" gorm:"type:varchar(255)"`
	Description   string     `json:"description" gorm:"type:text"`
	TargetVersion string     `json:"targetVersion" gorm:"type:varchar(64)"`
	DateSubmitted time.Time  `json:"dateSubmitted"`
	LastUpdated   time.Time  `json:"lastUpdated" gorm:"index"`
}

// FormatBugID 按给定宽度补零格式化缺陷编号，用于邮件主题等展示场景。
func FormatBugID(id, padding int) string {
	return fmt.Sprintf("%0*d", padding, id)
}
