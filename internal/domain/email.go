package domain

import "time"

// EmailHeader 额外邮件头，保持调用方给出的顺序。
type EmailHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EmailMetadata 队列邮件的元数据包。
type EmailMetadata struct {
	Headers  []EmailHeader `json:"headers"`
	Priority int           `json:"priority"` // 1 紧急，5 普通，0 禁用
	Charset  string        `json:"charset"`
	Hostname string        `json:"hostname"` // 产生该邮件的主机名，用于补全 Message-ID
}

// QueuedEmail 表示一封待投递的通知邮件。
//
// 由 Enqueue 写入，投递成功后删除；投递失败保留在队列中等待重试。
type QueuedEmail struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Recipient   string        `json:"recipient" gorm:"type:varchar(255);not null"`
	Subject     string        `json:"subject" gorm:"type:varchar(500)"`
	Body        string        `json:"body" gorm:"type:text"`
	Metadata    EmailMetadata `json:"metadata" gorm:"serializer:json;type:json"`
	SubmittedAt time.Time     `json:"submittedAt" gorm:"index"`
}

// Header 按键查找额外邮件头，找不到返回空串。
func (e *QueuedEmail) Header(key string) string {
	for _, h := range e.Metadata.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}
