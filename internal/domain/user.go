package domain

import "time"

// AccessLevel 用户访问级别，总序比较。
type AccessLevel int

const (
	AccessAnybody       AccessLevel = 0
	AccessViewer        AccessLevel = 10
	AccessReporter      AccessLevel = 25
	AccessUpdater       AccessLevel = 40
	AccessDeveloper     AccessLevel = 55
	AccessManager       AccessLevel = 70
	AccessAdministrator AccessLevel = 90
)

// Meets 判断当前级别是否达到给定阈值。
func (a AccessLevel) Meets(threshold AccessLevel) bool {
	return a >= threshold
}

// User 表示登记在系统内的用户。
type User struct {
	ID          int         `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string      `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	RealName    string      `json:"realName" gorm:"type:varchar(100)"`
	Email       string      `json:"email" gorm:"type:varchar(255)"` // 允许为空，空邮箱用户不接收通知
	Enabled     bool        `json:"enabled" gorm:"default:true;index"`
	Protected   bool        `json:"protected" gorm:"default:false"`
	AccessLevel AccessLevel `json:"accessLevel" gorm:"default:25"` // 全局默认级别
	Language    string      `json:"language" gorm:"type:varchar(16);default:'auto'"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// DisplayName 返回展示用的用户名，优先真实姓名。
func (u *User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// Project 表示一个项目。
type Project struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"uniqueIndex;type:varchar(128);not null"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	ViewState ViewState `json:"viewState" gorm:"default:10"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectUser 表示用户在某项目中的角色级别，覆盖其全局默认级别。
type ProjectUser struct {
	ProjectID   int         `json:"projectId" gorm:"primaryKey"`
	UserID      int         `json:"userId" gorm:"primaryKey"`
	AccessLevel AccessLevel `json:"accessLevel" gorm:"not null"`
}

// BugMonitor 表示用户监视某缺陷的关系。
type BugMonitor struct {
	BugID  int `json:"bugId" gorm:"primaryKey"`
	UserID int `json:"userId" gorm:"primaryKey"`
}
