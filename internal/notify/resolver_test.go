package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
)

func TestResolveSourceFlags(t *testing.T) {
	t.Run("报告人开启偏好而处理人关闭时只通知报告人", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "handler", domain.AccessDeveloper, "h@example.com")
		p.savePref(t, 20, func(pref *domain.UserPreference) { pref.EmailOnNew = false })
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, HandlerID: 20, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, map[int]string{10: "r@example.com"}, recipients)
	})

	t.Run("未指派的缺陷不产生处理人候选", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, map[int]string{10: "r@example.com"}, recipients)
	})

	t.Run("监视者和注释作者进入候选集", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 30, "watcher", domain.AccessUpdater, "w@example.com")
		p.seedUser(t, 40, "commenter", domain.AccessUpdater, "c@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})
		require.NoError(t, p.store.AddMonitor(1, 30))
		p.seedNote(t, &domain.Note{BugID: 1, ReporterID: 40, ViewState: domain.ViewPublic, Text: "looking"})

		recipients, err := p.resolver.Resolve(1, domain.NotifyUpdated, 0, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{10, 30, 40}, keys(recipients))
	})

	t.Run("角色区间收件", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) {
			flags := cfg.Notify.Default
			flags.Reporter = false
			flags.ThresholdMin = domain.AccessDeveloper
			flags.ThresholdMax = domain.AccessManager
			cfg.Notify.Default = flags
		})
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "dev", domain.AccessDeveloper, "d@example.com")
		p.seedUser(t, 30, "admin", domain.AccessAdministrator, "a@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyUpdated, 0, nil)
		require.NoError(t, err)
		// 管理员超出区间上限，报告人来源已关闭
		assert.ElementsMatch(t, []int{20}, keys(recipients))
	})
}

func TestResolveExclusions(t *testing.T) {
	t.Run("私有缺陷挡住级别不足的项目成员", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) {
			flags := cfg.Notify.Default
			flags.ThresholdMin = domain.AccessAnybody
			flags.ThresholdMax = domain.AccessAdministrator
			cfg.Notify.Default = flags
		})
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessDeveloper, "r@example.com")
		p.seedUser(t, 50, "member", domain.AccessUpdater, "m@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPrivate, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.NotContains(t, recipients, 50)
		assert.Contains(t, recipients, 10)
	})

	t.Run("停用用户即便显式指定也被排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 60, "gone", domain.AccessManager, "g@example.com")
		user, err := p.store.GetUser(60)
		require.NoError(t, err)
		user.Enabled = false
		require.NoError(t, p.store.SaveUser(user))
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, []int{60})
		require.NoError(t, err)
		assert.NotContains(t, recipients, 60)
	})

	t.Run("低于偏好的最低严重程度被排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 70, "picky", domain.AccessDeveloper, "p@example.com")
		p.savePref(t, 70, func(pref *domain.UserPreference) {
			pref.EmailOnNewMinSeverity = domain.SeverityMajor
		})
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 70, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})

	t.Run("最近更新是私有注释时看不到注释的人被排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "dev", domain.AccessDeveloper, "d@example.com")
		noteTime := baseTime.Add(time.Hour)
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor, LastUpdated: noteTime})
		p.seedNote(t, &domain.Note{
			BugID: 1, ReporterID: 20, ViewState: domain.ViewPrivate,
			Text: "internal detail", DateSubmitted: noteTime, LastModified: noteTime,
		})

		recipients, err := p.resolver.Resolve(1, domain.NotifyUpdated, 0, nil)
		require.NoError(t, err)
		// 报告人能看缺陷但看不到私有注释
		assert.NotContains(t, recipients, 10)
		assert.Contains(t, recipients, 20)
	})

	t.Run("空邮箱地址被排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "noaddr", domain.AccessReporter, "")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})

	t.Run("触发者默认不收自己的通知", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "actor", domain.AccessReporter, "a@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})

	t.Run("receive_own 开启时触发者照常收件", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) { cfg.Email.ReceiveOwn = true })
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "actor", domain.AccessReporter, "a@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 10, nil)
		require.NoError(t, err)
		assert.Contains(t, recipients, 10)
	})
}

func TestResolvePluginHooks(t *testing.T) {
	t.Run("追加钩子贡献的用户参与后续过滤", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 80, "oncall", domain.AccessDeveloper, "o@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})
		p.hooks.RegisterInclude("oncall-rota", func(bugID int, event domain.NotifyType) []int {
			return []int{80}
		})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Contains(t, recipients, 80)
	})

	t.Run("排除钩子命中即排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})
		p.hooks.RegisterExclude("mute", func(bugID int, event domain.NotifyType, userID int) bool {
			return userID == 10
		})

		recipients, err := p.resolver.Resolve(1, domain.NotifyNew, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})
}

func TestResolveProperties(t *testing.T) {
	t.Run("解析结果从不包含看不到缺陷的用户", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) {
			flags := cfg.Notify.Default
			flags.ThresholdMin = domain.AccessAnybody
			flags.ThresholdMax = domain.AccessAdministrator
			cfg.Notify.Default = flags
		})
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessDeveloper, "r@example.com")
		p.seedUser(t, 20, "dev", domain.AccessDeveloper, "d@example.com")
		p.seedUser(t, 30, "low", domain.AccessViewer, "l@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPrivate, Severity: domain.SeverityMinor})

		for _, event := range []domain.NotifyType{domain.NotifyNew, domain.NotifyUpdated, domain.NotifyResolved} {
			recipients, err := p.resolver.Resolve(1, event, 0, []int{30})
			require.NoError(t, err)
			bug, err := p.store.GetBug(1)
			require.NoError(t, err)
			for userID := range recipients {
				ok, err := p.policy.CanViewBug(userID, bug)
				require.NoError(t, err)
				assert.True(t, ok, "user %d of event %s", userID, event)
			}
		}
	})

	t.Run("无状态变化时两次解析结果一致", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "handler", domain.AccessDeveloper, "h@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, HandlerID: 20, Severity: domain.SeverityMinor})

		first, err := p.resolver.Resolve(1, domain.NotifyUpdated, 0, nil)
		require.NoError(t, err)
		second, err := p.resolver.Resolve(1, domain.NotifyUpdated, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestPreferenceFieldFallback(t *testing.T) {
	t.Run("priority 类型落到 email_on_status", func(t *testing.T) {
		assert.Equal(t, domain.PrefEmailOnStatus, domain.NotifyPriority.PreferenceField())
	})

	t.Run("未识别的类型落到 email_on_status", func(t *testing.T) {
		assert.Equal(t, domain.PrefEmailOnStatus, domain.NotifyType("made-up").PreferenceField())
	})

	t.Run("email_on_status 关闭时 priority 通知被排除", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.savePref(t, 10, func(pref *domain.UserPreference) { pref.EmailOnStatus = false })
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Severity: domain.SeverityMinor})

		recipients, err := p.resolver.Resolve(1, domain.NotifyPriority, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})
}

func keys(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
