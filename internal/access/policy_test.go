package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage/memory"
)

func testAccessConfig() config.AccessConfig {
	return config.AccessConfig{
		ViewBugThreshold:     domain.AccessViewer,
		PrivateBugThreshold:  domain.AccessDeveloper,
		PrivateNoteThreshold: domain.AccessDeveloper,
	}
}

func seedProject(t *testing.T, store *memory.Store) {
	t.Helper()
	require.NoError(t, store.SaveProject(&domain.Project{ID: 1, Name: "core"}))
	require.NoError(t, store.SaveUser(&domain.User{ID: 10, Name: "reporter", Email: "r@example.com", Enabled: true, AccessLevel: domain.AccessReporter}))
	require.NoError(t, store.SaveUser(&domain.User{ID: 20, Name: "dev", Email: "d@example.com", Enabled: true, AccessLevel: domain.AccessDeveloper}))
}

func TestPolicyCanViewBug(t *testing.T) {
	t.Run("公开缺陷按查看阈值放行", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		policy := NewPolicy(store, testAccessConfig())

		bug := &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPublic}
		ok, err := policy.CanViewBug(20, bug)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("私有缺陷挡住级别不足的用户", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		require.NoError(t, store.SaveUser(&domain.User{ID: 30, Name: "other", Email: "o@example.com", Enabled: true, AccessLevel: domain.AccessReporter}))
		policy := NewPolicy(store, testAccessConfig())

		bug := &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPrivate}
		ok, err := policy.CanViewBug(30, bug)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("报告人可见自己的私有缺陷", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		policy := NewPolicy(store, testAccessConfig())

		bug := &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPrivate}
		ok, err := policy.CanViewBug(10, bug)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("处理人可见指派给自己的私有缺陷", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		require.NoError(t, store.SaveUser(&domain.User{ID: 40, Name: "handler", Email: "h@example.com", Enabled: true, AccessLevel: domain.AccessUpdater}))
		policy := NewPolicy(store, testAccessConfig())

		bug := &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, HandlerID: 40, ViewState: domain.ViewPrivate}
		ok, err := policy.CanViewBug(40, bug)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestPolicyCanViewNote(t *testing.T) {
	t.Run("私有注释只给达到阈值的成员和作者", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		policy := NewPolicy(store, testAccessConfig())

		bug := &domain.Bug{ID: 1, ProjectID: 1, ReporterID: 10, ViewState: domain.ViewPublic}
		note := &domain.Note{ID: 5, BugID: 1, ReporterID: 10, ViewState: domain.ViewPrivate}

		ok, err := policy.CanViewNote(20, bug, note)
		require.NoError(t, err)
		assert.True(t, ok, "开发者达到私有注释阈值")

		ok, err = policy.CanViewNote(10, bug, note)
		require.NoError(t, err)
		assert.True(t, ok, "作者始终可见自己的注释")

		require.NoError(t, store.SaveUser(&domain.User{ID: 50, Name: "viewer", Email: "v@example.com", Enabled: true, AccessLevel: domain.AccessViewer}))
		ok, err = policy.CanViewNote(50, bug, note)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPolicyProjectLevelOverride(t *testing.T) {
	t.Run("项目级行覆盖全局级别", func(t *testing.T) {
		store := memory.NewStore()
		seedProject(t, store)
		require.NoError(t, store.SetProjectAccess(1, 10, domain.AccessManager))
		policy := NewPolicy(store, testAccessConfig())

		level, err := policy.ProjectLevel(10, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.AccessManager, level)
	})
}
