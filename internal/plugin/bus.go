// Package plugin 提供通知收件环节的扩展点。
//
// 钩子按注册顺序执行，同一事件下的执行序列是确定的，插件来源名
// 会带进收件日志，便于追查某个收件人是谁加进来或被谁排除的。
package plugin

import (
	"sync"

	"bugtrack/backend/internal/domain"
)

// IncludeFunc 收件追加钩子，返回要追加的用户 ID。
type IncludeFunc func(bugID int, event domain.NotifyType) []int

// ExcludeFunc 收件排除钩子，返回 true 表示排除该用户。
type ExcludeFunc func(bugID int, event domain.NotifyType, userID int) bool

// SubjectFunc 主题改写钩子，返回改写后的主题。
type SubjectFunc func(bugID int, subject string) string

// IncludeResult 单个追加钩子的执行结果。
type IncludeResult struct {
	Source  string
	UserIDs []int
}

type namedInclude struct {
	source string
	fn     IncludeFunc
}

type namedExclude struct {
	source string
	fn     ExcludeFunc
}

type namedSubject struct {
	source string
	fn     SubjectFunc
}

// Bus 注册并派发收件钩子。
type Bus struct {
	mu       sync.RWMutex
	includes []namedInclude
	excludes []namedExclude
	subjects []namedSubject
}

// NewBus 创建空的钩子总线。
func NewBus() *Bus {
	return &Bus{}
}

// RegisterInclude 注册收件追加钩子。
func (b *Bus) RegisterInclude(source string, fn IncludeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.includes = append(b.includes, namedInclude{source: source, fn: fn})
}

// RegisterExclude 注册收件排除钩子。
func (b *Bus) RegisterExclude(source string, fn ExcludeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.excludes = append(b.excludes, namedExclude{source: source, fn: fn})
}

// RegisterSubject 注册主题改写钩子。
func (b *Bus) RegisterSubject(source string, fn SubjectFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, namedSubject{source: source, fn: fn})
}

// Includes 按注册顺序执行所有追加钩子。
func (b *Bus) Includes(bugID int, event domain.NotifyType) []IncludeResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]IncludeResult, 0, len(b.includes))
	for _, h := range b.includes {
		ids := h.fn(bugID, event)
		if len(ids) == 0 {
			continue
		}
		results = append(results, IncludeResult{Source: h.source, UserIDs: ids})
	}
	return results
}

// Excluded 按注册顺序执行排除钩子，返回首个命中的来源名。
func (b *Bus) Excluded(bugID int, event domain.NotifyType, userID int) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.excludes {
		if h.fn(bugID, event, userID) {
			return h.source, true
		}
	}
	return "", false
}

// Subject 让所有主题钩子依次改写主题。
func (b *Bus) Subject(bugID int, subject string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.subjects {
		subject = h.fn(bugID, subject)
	}
	return subject
}
