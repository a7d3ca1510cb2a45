package domain

import (
	"strconv"
	"strings"
	"time"
)

// NoteType 注释类型。
type NoteType int

const (
	NoteComment      NoteType = 0 // 普通注释
	NoteReminder     NoteType = 1 // 提醒，Attr 中携带收件人列表
	NoteTimeTracking NoteType = 2 // 工时记录
)

// Note 表示附加在缺陷上的一条注释（统一了历史上的 bugnote/docnote 两套命名）。
//
// 正文保存在独立的 NoteText 行里，编辑正文不触碰元数据行。
// 不变量：LastModified 与 DateSubmitted 不同当且仅当正文被编辑过。
type Note struct {
	ID            int       `json:"id" gorm:"primaryKey;autoIncrement"`
	BugID         int       `json:"bugId" gorm:"index;not null"`
	ReporterID    int       `json:"reporterId" gorm:"index;not null"`
	TextID        int       `json:"textId" gorm:"not null"`
	ViewState     ViewState `json:"viewState" gorm:"default:10"`
	Type          NoteType  `json:"type" gorm:"default:0"`
	Attr          string    `json:"attr" gorm:"type:varchar(255)"` // 类型相关负载，提醒收件人为 | 分隔的用户 ID
	TimeTracking  int       `json:"timeTracking" gorm:"default:0"` // 分钟数
	DateSubmitted time.Time `json:"dateSubmitted" gorm:"index"`
	LastModified  time.Time `json:"lastModified"`

	// 正文由存储层联表填充，不落在 note 行。
	Text string `json:"text" gorm:"-"`
}

// NoteText 注释正文行，与元数据分离存储。
type NoteText struct {
	ID   int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Note string `json:"note" gorm:"type:text"`
}

// ReminderRecipients 解析提醒类型注释 Attr 中的收件人用户 ID 列表。
func (n *Note) ReminderRecipients() []int {
	if n.Type != NoteReminder || n.Attr == "" {
		return nil
	}
	parts := strings.Split(strings.Trim(n.Attr, "|"), "|")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.Atoi(p); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Edited 判断正文是否被编辑过。
func (n *Note) Edited() bool {
	return !n.LastModified.Equal(n.DateSubmitted)
}
