package domain

import "time"

// HistoryEvent 缺陷变更历史条目。
type HistoryEvent struct {
	ID       int       `json:"id" gorm:"primaryKey;autoIncrement"`
	BugID    int       `json:"bugId" gorm:"index;not null"`
	UserID   int       `json:"userId" gorm:"not null"`
	Field    string    `json:"field" gorm:"type:varchar(64)"`
	OldValue string    `json:"oldValue" gorm:"type:varchar(255)"`
	NewValue string    `json:"newValue" gorm:"type:varchar(255)"`
	Date     time.Time `json:"date" gorm:"index"`
}

// Sponsorship 表示用户对缺陷的赞助。
type Sponsorship struct {
	ID            int       `json:"id" gorm:"primaryKey;autoIncrement"`
	BugID         int       `json:"bugId" gorm:"index;not null"`
	UserID        int       `json:"userId" gorm:"not null"`
	Amount        int       `json:"amount" gorm:"not null"` // 以最小货币单位计
	DateSubmitted time.Time `json:"dateSubmitted"`
}

// CustomFieldType 自定义字段类型，决定渲染方式。
type CustomFieldType int

const (
	FieldString   CustomFieldType = 0
	FieldNumeric  CustomFieldType = 1
	FieldFloat    CustomFieldType = 2
	FieldEnum     CustomFieldType = 3
	FieldEmail    CustomFieldType = 4
	FieldCheckbox CustomFieldType = 5
	FieldDate     CustomFieldType = 8
)

// CustomField 自定义字段定义。
type CustomField struct {
	ID            int             `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string          `json:"name" gorm:"uniqueIndex;type:varchar(64);not null"`
	Type          CustomFieldType `json:"type" gorm:"default:0"`
	ReadThreshold AccessLevel     `json:"readThreshold" gorm:"default:10"`
}

// CustomFieldValue 某缺陷上自定义字段的取值。
type CustomFieldValue struct {
	FieldID int    `json:"fieldId" gorm:"primaryKey"`
	BugID   int    `json:"bugId" gorm:"primaryKey;index"`
	Value   string `json:"value" gorm:"type:varchar(255)"`
}
