package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bugtrack/backend/internal/domain"
)

func TestCatalogResolve(t *testing.T) {
	c := NewCatalog("english", "english")

	t.Run("auto 折算为系统默认语言", func(t *testing.T) {
		assert.Equal(t, "english", c.Resolve("auto"))
		assert.Equal(t, "english", c.Resolve(""))
	})

	t.Run("未注册语言退回默认语言", func(t *testing.T) {
		assert.Equal(t, "english", c.Resolve("klingon"))
	})

	t.Run("已注册语言原样返回", func(t *testing.T) {
		assert.Equal(t, "chinese", c.Resolve("chinese"))
	})
}

func TestCatalogTr(t *testing.T) {
	c := NewCatalog("english", "english")

	t.Run("中文缺键回退英文", func(t *testing.T) {
		assert.Equal(t, "以下缺陷已解决。", c.Tr("chinese", "notify_action_resolved"))
		assert.Equal(t, "The following issue has been RESOLVED.", c.Tr("chinese_missing", "notify_action_resolved"))
	})

	t.Run("全部缺键返回键名", func(t *testing.T) {
		assert.Equal(t, "no_such_key", c.Tr("english", "no_such_key"))
	})
}

func TestCatalogEnumNames(t *testing.T) {
	c := NewCatalog("english", "english")

	assert.Equal(t, "resolved", c.StatusName("english", domain.StatusResolved))
	assert.Equal(t, "已解决", c.StatusName("chinese", domain.StatusResolved))
	assert.Equal(t, "block", c.SeverityName("english", domain.SeverityBlock))
	assert.Equal(t, "private", c.ViewStateName("english", domain.ViewPrivate))

	t.Run("未注册枚举值渲染为占位符", func(t *testing.T) {
		assert.Equal(t, "@55@", c.StatusName("english", domain.BugStatus(55)))
	})
}

func TestActionLine(t *testing.T) {
	c := NewCatalog("english", "english")

	assert.Equal(t, "The following issue has been SUBMITTED.", c.ActionLine("english", domain.NotifyNew))

	t.Run("未识别类型按普通变更处理", func(t *testing.T) {
		assert.Equal(t, "The following issue has been UPDATED.", c.ActionLine("english", domain.NotifyType("weird")))
	})
}
