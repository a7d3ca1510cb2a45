package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
)

func TestDispatcherNotify(t *testing.T) {
	t.Run("逐收件人渲染入队", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "handler", domain.AccessDeveloper, "h@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, HandlerID: 20, Summary: "boom", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.Notify(0, 1, domain.NotifyNew, "", nil, nil))

		depth, err := p.store.QueueDepth()
		require.NoError(t, err)
		assert.Equal(t, 2, depth)
	})
}

func TestDispatcherFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("产生过邮件且未走批处理时同步投递", func(t *testing.T) {
		p := newPipeline(t)
		_, err := p.queue.Enqueue("dev@example.com", "s", "b", nil, false)
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.Flush(ctx))

		assert.Len(t, p.recorder.Sent(), 1)
		generated, _ := p.queue.Flags()
		assert.False(t, generated, "Flush 后标志复位")
	})

	t.Run("批处理模式下请求结束不投递", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) { cfg.Email.SendUsingCron = true })
		_, err := p.queue.Enqueue("dev@example.com", "s", "b", nil, false)
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.Flush(ctx))

		assert.Empty(t, p.recorder.Sent())
		depth, err := p.store.QueueDepth()
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})

	t.Run("强制标志覆盖批处理配置", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) { cfg.Email.SendUsingCron = true })
		_, err := p.queue.Enqueue("dev@example.com", "s", "b", nil, true)
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.Flush(ctx))
		assert.Len(t, p.recorder.Sent(), 1)
	})

	t.Run("没产生邮件时什么都不做", func(t *testing.T) {
		p := newPipeline(t)
		require.NoError(t, p.dispatcher.Flush(ctx))
		assert.Empty(t, p.recorder.Sent())
	})
}

func TestDispatcherMonitorAdded(t *testing.T) {
	t.Run("新监视者收到定向通知", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 30, "watcher", domain.AccessUpdater, "w@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Summary: "boom", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.MonitorAdded(10, 1, 30))
		require.NoError(t, p.dispatcher.Flush(context.Background()))

		assert.Contains(t, p.recorder.SentTo(), "w@example.com")
		// 触发者本人不收件
		assert.NotContains(t, p.recorder.SentTo(), "r@example.com")
	})
}

func TestDispatcherRelationships(t *testing.T) {
	ctx := context.Background()

	t.Run("未知关系类型是致命错误", func(t *testing.T) {
		p := newPipeline(t)
		err := p.dispatcher.RelationshipAdded(0, 1, domain.RelationType(99), 2)
		assert.ErrorIs(t, err, domain.ErrRelationshipNotFound)
	})

	t.Run("看不到对端缺陷的收件人被过滤", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "dev", domain.AccessDeveloper, "d@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, HandlerID: 20, Summary: "boom", Severity: domain.SeverityMinor})
		// 对端是私有缺陷，报告人级别不足
		p.seedBug(t, &domain.Bug{ID: 2, ProjectID: 1, ReporterID: 20, ViewState: domain.ViewPrivate, Summary: "secret", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.RelationshipAdded(0, 1, domain.RelationRelatedTo, 2))
		require.NoError(t, p.dispatcher.Flush(ctx))

		assert.Contains(t, p.recorder.SentTo(), "d@example.com")
		assert.NotContains(t, p.recorder.SentTo(), "r@example.com")
	})

	t.Run("通知正文引用对端补零编号", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "reporter", domain.AccessReporter, "r@example.com")
		p.seedUser(t, 20, "dev", domain.AccessDeveloper, "d@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Summary: "boom", Severity: domain.SeverityMinor})
		p.seedBug(t, &domain.Bug{ID: 34, ProjectID: 1, ReporterID: 20, Summary: "other", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.RelationshipAdded(20, 1, domain.RelationRelatedTo, 34))
		require.NoError(t, p.dispatcher.Flush(ctx))

		sent := p.recorder.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Body, "RELATED TO issue 0000034")
	})

	t.Run("子缺陷解决只通知未解决的父缺陷", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "openowner", domain.AccessReporter, "open@example.com")
		p.seedUser(t, 20, "doneowner", domain.AccessReporter, "done@example.com")
		p.seedUser(t, 30, "actor", domain.AccessDeveloper, "actor@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Status: domain.StatusAssigned, Summary: "open parent", Severity: domain.SeverityMinor})
		p.seedBug(t, &domain.Bug{ID: 2, ProjectID: 1, ReporterID: 20, Status: domain.StatusResolved, Summary: "done parent", Severity: domain.SeverityMinor})
		p.seedBug(t, &domain.Bug{ID: 3, ProjectID: 1, ReporterID: 30, Status: domain.StatusResolved, Summary: "child", Severity: domain.SeverityMinor})
		require.NoError(t, p.store.SaveRelationship(&domain.Relationship{SourceBugID: 1, DestBugID: 3, Type: domain.RelationParentOf}))
		require.NoError(t, p.store.SaveRelationship(&domain.Relationship{SourceBugID: 2, DestBugID: 3, Type: domain.RelationParentOf}))

		require.NoError(t, p.dispatcher.RelationshipChildResolved(30, 3))
		require.NoError(t, p.dispatcher.Flush(ctx))

		assert.Contains(t, p.recorder.SentTo(), "open@example.com")
		assert.NotContains(t, p.recorder.SentTo(), "done@example.com")
	})
}

func TestDispatcherReminder(t *testing.T) {
	ctx := context.Background()

	t.Run("提醒绕过收件解析直达指定用户", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "sender", domain.AccessDeveloper, "s@example.com")
		p.seedUser(t, 20, "target", domain.AccessUpdater, "t@example.com")
		p.savePref(t, 20, func(pref *domain.UserPreference) { pref.EmailOnStatus = false })
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Summary: "boom", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.Reminder(10, []int{20}, 1, "please retest"))
		require.NoError(t, p.dispatcher.Flush(ctx))

		sent := p.recorder.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "t@example.com", sent[0].Recipient)
		assert.Contains(t, sent[0].Body, "please retest")
		assert.Contains(t, sent[0].Body, "sender")
	})

	t.Run("正文列出全部送达名单", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "sender", domain.AccessDeveloper, "s@example.com")
		p.seedUser(t, 20, "target", domain.AccessUpdater, "t@example.com")
		p.seedUser(t, 30, "other", domain.AccessUpdater, "o@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Summary: "boom", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.Reminder(10, []int{30, 20}, 1, "sync up"))
		require.NoError(t, p.dispatcher.Flush(ctx))

		sent := p.recorder.Sent()
		require.Len(t, sent, 2)
		for _, email := range sent {
			assert.Contains(t, email.Body, "Reminder sent to: target, other")
		}
	})

	t.Run("发件人邮箱按阈值披露", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "sender", domain.AccessDeveloper, "s@example.com")
		p.seedUser(t, 20, "low", domain.AccessUpdater, "low@example.com")
		p.seedUser(t, 30, "high", domain.AccessDeveloper, "high@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, Summary: "boom", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.Reminder(10, []int{20, 30}, 1, "check this"))
		require.NoError(t, p.dispatcher.Flush(ctx))

		sent := p.recorder.Sent()
		require.Len(t, sent, 2)
		for _, email := range sent {
			if email.Recipient == "high@example.com" {
				assert.Contains(t, email.Body, "s@example.com")
			} else {
				assert.NotContains(t, email.Body, "s@example.com")
			}
		}
	})

	t.Run("看不到缺陷的用户收不到提醒", func(t *testing.T) {
		p := newPipeline(t)
		p.seedProject(t, 1, "core")
		p.seedUser(t, 10, "sender", domain.AccessDeveloper, "s@example.com")
		p.seedUser(t, 20, "outsider", domain.AccessUpdater, "o@example.com")
		p.seedBug(t, &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPrivate, Summary: "secret", Severity: domain.SeverityMinor})

		require.NoError(t, p.dispatcher.Reminder(10, []int{20}, 1, "ping"))
		require.NoError(t, p.dispatcher.Flush(context.Background()))
		assert.Empty(t, p.recorder.Sent())
	})
}
