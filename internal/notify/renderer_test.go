package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
)

func seedRenderFixture(t *testing.T, p *pipeline) {
	t.Helper()
	p.seedProject(t, 1, "core")
	p.seedUser(t, 10, "alice", domain.AccessReporter, "alice@example.com")
	p.seedUser(t, 20, "bob", domain.AccessDeveloper, "bob@example.com")
	p.seedBug(t, &domain.Bug{
		ID: 12, ProjectID: 1, ReporterID: 10, HandlerID: 20,
		Status: domain.StatusAssigned, Severity: domain.SeverityMajor,
		Priority: domain.PriorityHigh, Resolution: domain.ResolutionOpen,
		ViewState: domain.ViewPublic,
		Summary:   "crash on save", Description: "saving a draft crashes the app",
	})
}

func TestRenderSubjectAndThreading(t *testing.T) {
	t.Run("主题为项目名加补零编号加摘要", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)

		msg, err := p.renderer.Render(20, 12, domain.NotifyNew, "")
		require.NoError(t, err)
		assert.Equal(t, "[core 0000012]: crash on save", msg.Subject)
	})

	t.Run("首封通知带 Message-ID 后续带 In-Reply-To", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)

		first, err := p.renderer.Render(20, 12, domain.NotifyNew, "")
		require.NoError(t, err)
		require.Len(t, first.Headers, 1)
		assert.Equal(t, "Message-ID", first.Headers[0].Key)

		followup, err := p.renderer.Render(20, 12, domain.NotifyResolved, "")
		require.NoError(t, err)
		assert.Equal(t, "In-Reply-To", followup.Headers[0].Key)
		// 线索标识对同一缺陷保持稳定
		assert.Equal(t, first.Headers[0].Value, followup.Headers[0].Value)
	})

	t.Run("主题钩子可以改写主题", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		p.hooks.RegisterSubject("tagger", func(bugID int, subject string) string {
			return "[urgent] " + subject
		})

		msg, err := p.renderer.Render(20, 12, domain.NotifyNew, "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(msg.Subject, "[urgent] [core"))
	})
}

func TestRenderAccessFiltering(t *testing.T) {
	t.Run("处理人名字被阈值隐藏", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) {
			cfg.Access.ViewHandlerThreshold = domain.AccessDeveloper
		})
		seedRenderFixture(t, p)

		low, err := p.renderer.Render(10, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, low.Body, "bob")

		high, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, high.Body, "bob")
	})

	t.Run("私有注释只出现在够级别的收件人正文里", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		p.seedNote(t, &domain.Note{
			BugID: 12, ReporterID: 20, ViewState: domain.ViewPrivate,
			Text: "root cause is the cache",
		})

		low, err := p.renderer.Render(10, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, low.Body, "root cause")

		high, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, high.Body, "root cause")
	})

	t.Run("处理结论只在状态达到已解决后出现", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, msg.Body, "(open)")

		bug, err := p.store.GetBug(12)
		require.NoError(t, err)
		bug.Status = domain.StatusResolved
		bug.Resolution = domain.ResolutionFixed
		require.NoError(t, p.store.UpdateBug(bug))

		msg, err = p.renderer.Render(20, 12, domain.NotifyResolved, "")
		require.NoError(t, err)
		assert.Contains(t, msg.Body, "resolved (fixed)")
	})

	t.Run("赞助明细另有阈值够总额级别只看到总数", func(t *testing.T) {
		p := newPipeline(t, func(cfg *config.Config) {
			cfg.Access.EnableSponsorship = true
		})
		seedRenderFixture(t, p)
		p.seedUser(t, 30, "carol", domain.AccessReporter, "carol@example.com")
		require.NoError(t, p.store.SaveSponsorship(&domain.Sponsorship{BugID: 12, UserID: 30, Amount: 50}))

		low, err := p.renderer.Render(10, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, low.Body, "50")
		assert.NotContains(t, low.Body, "carol")

		high, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, high.Body, "carol: 50")
	})

	t.Run("工时只对够级别的收件人可见", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		p.seedNote(t, &domain.Note{
			BugID: 12, ReporterID: 20, ViewState: domain.ViewPublic,
			Type: domain.NoteTimeTracking, TimeTracking: 90, Text: "profiling",
		})

		high, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, high.Body, "01:30")

		low, err := p.renderer.Render(10, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, low.Body, "01:30")
	})
}

func TestRenderNotePreferences(t *testing.T) {
	seedThreeNotes := func(t *testing.T, p *pipeline) {
		t.Helper()
		for i, text := range []string{"first note", "second note", "third note"} {
			p.seedNote(t, &domain.Note{
				BugID: 12, ReporterID: 20, ViewState: domain.ViewPublic,
				Text: text, DateSubmitted: baseTime.Add(time.Duration(i) * time.Minute),
			})
		}
	}

	t.Run("默认升序且不限条数", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		seedThreeNotes(t, p)

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		first := strings.Index(msg.Body, "first note")
		third := strings.Index(msg.Body, "third note")
		require.NotEqual(t, -1, first)
		require.NotEqual(t, -1, third)
		assert.Less(t, first, third)
	})

	t.Run("倒序偏好让最新注释排在最前", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		seedThreeNotes(t, p)
		p.savePref(t, 20, func(pref *domain.UserPreference) { pref.NoteOrder = domain.NoteOrderDesc })

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		first := strings.Index(msg.Body, "first note")
		third := strings.Index(msg.Body, "third note")
		require.NotEqual(t, -1, first)
		require.NotEqual(t, -1, third)
		assert.Less(t, third, first)
	})

	t.Run("条数上限只保留最新的注释", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		seedThreeNotes(t, p)
		p.savePref(t, 20, func(pref *domain.UserPreference) { pref.EmailNoteLimit = 2 })

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, msg.Body, "first note")
		assert.Contains(t, msg.Body, "second note")
		assert.Contains(t, msg.Body, "third note")
	})

	t.Run("上限和倒序可以叠加", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		seedThreeNotes(t, p)
		p.savePref(t, 20, func(pref *domain.UserPreference) {
			pref.NoteOrder = domain.NoteOrderDesc
			pref.EmailNoteLimit = 2
		})

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.NotContains(t, msg.Body, "first note")
		third := strings.Index(msg.Body, "third note")
		second := strings.Index(msg.Body, "second note")
		require.NotEqual(t, -1, third)
		require.NotEqual(t, -1, second)
		assert.Less(t, third, second)
	})
}

func TestRenderDateFormats(t *testing.T) {
	t.Run("提交与更新时间使用完整日期格式", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)

		msg, err := p.renderer.Render(20, 12, domain.NotifyUpdated, "")
		require.NoError(t, err)
		assert.Contains(t, msg.Body, "2026-03-01 10:00 UTC")
	})
}

func TestRenderLocalization(t *testing.T) {
	t.Run("正文使用收件人的偏好语言", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)
		p.savePref(t, 20, func(pref *domain.UserPreference) { pref.Language = "chinese" })

		msg, err := p.renderer.Render(20, 12, domain.NotifyResolved, "")
		require.NoError(t, err)
		assert.Contains(t, msg.Body, "以下缺陷已解决。")

		english, err := p.renderer.Render(10, 12, domain.NotifyResolved, "")
		require.NoError(t, err)
		assert.Contains(t, english.Body, "The following issue has been RESOLVED.")
	})

	t.Run("导语参数被填充", func(t *testing.T) {
		p := newPipeline(t)
		seedRenderFixture(t, p)

		msg, err := p.renderer.Render(20, 12, domain.NotifyRelation,
			"notify_relation_related_added", "0000034")
		require.NoError(t, err)
		assert.Contains(t, msg.Body, "RELATED TO issue 0000034")
	})
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinutes(0))
	assert.Equal(t, "00:45", FormatMinutes(45))
	assert.Equal(t, "01:30", FormatMinutes(90))
	assert.Equal(t, "25:00", FormatMinutes(1500))
}

func TestThreadID(t *testing.T) {
	bug := &domain.Bug{ID: 12, DateSubmitted: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	first := ThreadID(bug)
	assert.Len(t, first, 32)
	assert.Equal(t, first, ThreadID(bug))

	other := &domain.Bug{ID: 13, DateSubmitted: bug.DateSubmitted}
	assert.NotEqual(t, first, ThreadID(other))
}
