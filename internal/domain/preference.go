package domain

// NoteOrder 注释排序方向。
type NoteOrder string

const (
	NoteOrderAsc  NoteOrder = "ASC"
	NoteOrderDesc NoteOrder = "DESC"
)

// UserPreference 表示用户（可按项目覆盖）的通知偏好。
//
// ProjectID 为 0 表示全局默认；存在项目级行时优先生效。
type UserPreference struct {
	ID        int `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int `json:"userId" gorm:"index:idx_pref_user_project;not null"`
	ProjectID int `json:"projectId" gorm:"index:idx_pref_user_project;default:0"`

	EmailOnNew      bool `json:"emailOnNew" gorm:"default:true"`
	EmailOnFeedback bool `json:"emailOnFeedback" gorm:"default:true"`
	EmailOnReopened bool `json:"emailOnReopened" gorm:"default:true"`
	EmailOnResolved bool `json:"emailOnResolved" gorm:"default:true"`
	EmailOnClosed   bool `json:"emailOnClosed" gorm:"default:true"`
	EmailOnAssigned bool `json:"emailOnAssigned" gorm:"default:true"`
	EmailOnNote     bool `json:"emailOnNote" gorm:"default:true"`
	EmailOnStatus   bool `json:"emailOnStatus" gorm:"default:true"`

	EmailOnNewMinSeverity      Severity `json:"emailOnNewMinSeverity" gorm:"default:10"`
	EmailOnFeedbackMinSeverity Severity `json:"emailOnFeedbackMinSeverity" gorm:"default:10"`
	EmailOnReopenedMinSeverity Severity `json:"emailOnReopenedMinSeverity" gorm:"default:10"`
	EmailOnResolvedMinSeverity Severity `json:"emailOnResolvedMinSeverity" gorm:"default:10"`
	EmailOnClosedMinSeverity   Severity `json:"emailOnClosedMinSeverity" gorm:"default:10"`
	EmailOnAssignedMinSeverity Severity `json:"emailOnAssignedMinSeverity" gorm:"default:10"`
	EmailOnNoteMinSeverity     Severity `json:"emailOnNoteMinSeverity" gorm:"default:10"`
	EmailOnStatusMinSeverity   Severity `json:"emailOnStatusMinSeverity" gorm:"default:10"`

	Language       string    `json:"language" gorm:"type:varchar(16);default:'auto'"`
	NoteOrder      NoteOrder `json:"noteOrder" gorm:"type:varchar(4);default:'ASC'"`
	EmailNoteLimit int       `json:"emailNoteLimit" gorm:"default:0"` // 0 表示不限制
}

// PreferenceField 通知偏好字段名，由通知类型映射得到。
type PreferenceField string

const (
	PrefEmailOnNew      PreferenceField = "email_on_new"
	PrefEmailOnFeedback PreferenceField = "email_on_feedback"
	PrefEmailOnReopened PreferenceField = "email_on_reopened"
	PrefEmailOnResolved PreferenceField = "email_on_resolved"
	PrefEmailOnClosed   PreferenceField = "email_on_closed"
	PrefEmailOnAssigned PreferenceField = "email_on_assigned"
	PrefEmailOnNote     PreferenceField = "email_on_docnote"
	PrefEmailOnStatus   PreferenceField = "email_on_status"
)

// Wants 返回给定偏好字段的开关值。
func (p *UserPreference) Wants(field PreferenceField) bool {
	switch field {
	case PrefEmailOnNew:
		return p.EmailOnNew
	case PrefEmailOnFeedback:
		return p.EmailOnFeedback
	case PrefEmailOnReopened:
		return p.EmailOnReopened
	case PrefEmailOnResolved:
		return p.EmailOnResolved
	case PrefEmailOnClosed:
		return p.EmailOnClosed
	case PrefEmailOnAssigned:
		return p.EmailOnAssigned
	case PrefEmailOnNote:
		return p.EmailOnNote
	case PrefEmailOnStatus:
		return p.EmailOnStatus
	}
	return false
}

// MinSeverity 返回给定偏好字段对应的最低严重程度门槛。
func (p *UserPreference) MinSeverity(field PreferenceField) Severity {
	switch field {
	case PrefEmailOnNew:
		return p.EmailOnNewMinSeverity
	case PrefEmailOnFeedback:
		return p.EmailOnFeedbackMinSeverity
	case PrefEmailOnReopened:
		return p.EmailOnReopenedMinSeverity
	case PrefEmailOnResolved:
		return p.EmailOnResolvedMinSeverity
	case PrefEmailOnClosed:
		return p.EmailOnClosedMinSeverity
	case PrefEmailOnAssigned:
		return p.EmailOnAssignedMinSeverity
	case PrefEmailOnNote:
		return p.EmailOnNoteMinSeverity
	case PrefEmailOnStatus:
		return p.EmailOnStatusMinSeverity
	}
	return SeverityFeature
}

// DefaultPreference 返回用户的默认通知偏好。
func DefaultPreference(userID int) *UserPreference {
	return &UserPreference{
		UserID:          userID,
		EmailOnNew:      true,
		EmailOnFeedback: true,
		EmailOnReopened: true,
		EmailOnResolved: true,
		EmailOnClosed:   true,
		EmailOnAssigned: true,
		EmailOnNote:     true,
		EmailOnStatus:   true,
		Language:        "auto",
		NoteOrder:       NoteOrderAsc,
	}
}
