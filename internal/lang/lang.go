// Package lang 提供通知文案的多语言目录。
//
// 查找链为 请求语言 -> 系统默认语言 -> 最终回退语言 -> english，
// 用户语言为 "auto" 或空时直接使用系统默认语言。语料量很小且
// 全部内置，不引入外部 i18n 框架。
package lang

import (
	"fmt"
	"strconv"

	"bugtrack/backend/internal/domain"
)

// Catalog 按语言存放文案表并按回退链取值。
type Catalog struct {
	defaultLang  string
	fallbackLang string
	tables       map[string]map[string]string
}

// NewCatalog 创建文案目录，内置 english 与 chinese 两套语料。
func NewCatalog(defaultLang, fallbackLang string) *Catalog {
	if defaultLang == "" {
		defaultLang = "english"
	}
	if fallbackLang == "" {
		fallbackLang = "english"
	}
	return &Catalog{
		defaultLang:  defaultLang,
		fallbackLang: fallbackLang,
		tables: map[string]map[string]string{
			"english": englishStrings,
			"chinese": chineseStrings,
		},
	}
}

// Resolve 把用户偏好语言折算为实际语言名。
func (c *Catalog) Resolve(userLang string) string {
	if userLang == "" || userLang == "auto" {
		return c.defaultLang
	}
	if _, ok := c.tables[userLang]; ok {
		return userLang
	}
	return c.defaultLang
}

// Tr 按回退链取文案；所有表都没有该键时返回键名本身。
func (c *Catalog) Tr(lang, key string) string {
	for _, l := range []string{lang, c.defaultLang, c.fallbackLang, "english"} {
		if table, ok := c.tables[l]; ok {
			if s, ok := table[key]; ok {
				return s
			}
		}
	}
	return key
}

// Trf 取文案并做格式化。
func (c *Catalog) Trf(lang, key string, args ...interface{}) string {
	return fmt.Sprintf(c.Tr(lang, key), args...)
}

// ActionLine 取某通知类型的邮件导语。
func (c *Catalog) ActionLine(lang string, t domain.NotifyType) string {
	key := "notify_action_" + string(t)
	line := c.Tr(lang, key)
	if line == key {
		// 未识别的类型按普通变更处理
		return c.Tr(lang, "notify_action_updated")
	}
	return line
}

func (c *Catalog) enumName(lang, prefix string, value int) string {
	key := prefix + strconv.Itoa(value)
	name := c.Tr(lang, key)
	if name == key {
		return "@" + strconv.Itoa(value) + "@"
	}
	return name
}

// StatusName 取状态的本地化名称，未注册的枚举值渲染为 @N@。
func (c *Catalog) StatusName(lang string, s domain.BugStatus) string {
	return c.enumName(lang, "status_", int(s))
}

// SeverityName 取严重程度的本地化名称。
func (c *Catalog) SeverityName(lang string, s domain.Severity) string {
	return c.enumName(lang, "severity_", int(s))
}

// PriorityName 取优先级的本地化名称。
func (c *Catalog) PriorityName(lang string, p domain.Priority) string {
	return c.enumName(lang, "priority_", int(p))
}

// ResolutionName 取处理结论的本地化名称。
func (c *Catalog) ResolutionName(lang string, r domain.Resolution) string {
	return c.enumName(lang, "resolution_", int(r))
}

// ViewStateName 取可见性的本地化名称。
func (c *Catalog) ViewStateName(lang string, v domain.ViewState) string {
	return c.enumName(lang, "view_state_", int(v))
}
