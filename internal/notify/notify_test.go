package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/cache"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/lang"
	"bugtrack/backend/internal/mailer"
	"bugtrack/backend/internal/plugin"
	"bugtrack/backend/internal/storage/memory"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeClock 测试用可拨动时钟。
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// pipeline 组装一套基于内存存储的完整通知流水线。
type pipeline struct {
	store      *memory.Store
	cfg        *config.Config
	policy     *access.Policy
	hooks      *plugin.Bus
	catalog    *lang.Catalog
	noteCache  *cache.NoteCache
	resolver   *Resolver
	renderer   *Renderer
	recorder   *mailer.Recorder
	queue      *Queue
	dispatcher *Dispatcher
	clock      *fakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			Enabled:         true,
			FromAddress:     "bugs@example.com",
			Priority:        5,
			Charset:         "utf-8",
			PaddingLength:   28,
			BugIDPadding:    7,
			NoteIDPadding:   7,
			DateFormat:      "2006-01-02 15:04",
			FullDateFormat:  "2006-01-02 15:04 MST",
			ShowNotes:       true,
			DefaultLanguage: "english",
			FallbackLang:    "english",
			NoteLinkTag:     "~",
			DrainBudget:     5 * time.Second,
		},
		Notify: config.NotifyConfig{
			Default: config.NotifyFlags{
				Explicit:     true,
				Reporter:     true,
				Handler:      true,
				Monitors:     true,
				NoteAuthors:  true,
				ThresholdMin: domain.AccessAdministrator + 1,
				ThresholdMax: domain.AccessAdministrator,
			},
			Overrides: map[domain.NotifyType]config.NotifyFlags{},
		},
		Access: config.AccessConfig{
			ViewBugThreshold:        domain.AccessViewer,
			PrivateBugThreshold:     domain.AccessDeveloper,
			PrivateNoteThreshold:    domain.AccessDeveloper,
			SetViewStatusThreshold:  domain.AccessReporter,
			ViewHandlerThreshold:    domain.AccessViewer,
			RoadmapViewThreshold:    domain.AccessViewer,
			ViewHistoryThreshold:    domain.AccessViewer,
			TimeTrackingThreshold:   domain.AccessDeveloper,
			ShowUserEmailThreshold:  domain.AccessDeveloper,
			SponsorTotalThreshold:   domain.AccessViewer,
			SponsorDetailsThreshold: domain.AccessDeveloper,
			HistoryDefaultVisible:   true,
			TimeTrackingEnabled:     true,
			ResolvedStatusThreshold: domain.StatusResolved,
		},
	}
}

func newPipeline(t *testing.T, mutate ...func(*config.Config)) *pipeline {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	store := memory.NewStore()
	log := zap.NewNop()
	policy := access.NewPolicy(store, cfg.Access)
	hooks := plugin.NewBus()
	catalog := lang.NewCatalog(cfg.Email.DefaultLanguage, cfg.Email.FallbackLang)
	noteCache := cache.NewNoteCache(store)
	recorder := mailer.NewRecorder()
	clock := &fakeClock{now: baseTime}

	queue := NewQueue(store, recorder, nil, cfg, nil, "tracker.test", log)
	queue.clock = clock
	resolver := NewResolver(store, policy, hooks, cfg, nil, log)
	renderer := NewRenderer(store, policy, noteCache, catalog, hooks, cfg, "tracker.test")
	dispatcher := NewDispatcher(store, policy, resolver, renderer, queue, catalog, cfg, log)

	return &pipeline{
		store:      store,
		cfg:        cfg,
		policy:     policy,
		hooks:      hooks,
		catalog:    catalog,
		noteCache:  noteCache,
		resolver:   resolver,
		renderer:   renderer,
		recorder:   recorder,
		queue:      queue,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// seedUser 建用户，默认偏好全部开启。
func (p *pipeline) seedUser(t *testing.T, id int, name string, level domain.AccessLevel, email string) {
	t.Helper()
	require.NoError(t, p.store.SaveUser(&domain.User{
		ID:          id,
		Name:        name,
		Email:       email,
		Enabled:     true,
		AccessLevel: level,
		Language:    "auto",
	}))
}

func (p *pipeline) seedProject(t *testing.T, id int, name string) {
	t.Helper()
	require.NoError(t, p.store.SaveProject(&domain.Project{ID: id, Name: name}))
}

func (p *pipeline) seedBug(t *testing.T, bug *domain.Bug) {
	t.Helper()
	if bug.DateSubmitted.IsZero() {
		bug.DateSubmitted = baseTime
	}
	if bug.LastUpdated.IsZero() {
		bug.LastUpdated = bug.DateSubmitted
	}
	require.NoError(t, p.store.SaveBug(bug))
}

func (p *pipeline) seedNote(t *testing.T, note *domain.Note) {
	t.Helper()
	if note.DateSubmitted.IsZero() {
		note.DateSubmitted = baseTime
	}
	if note.LastModified.IsZero() {
		note.LastModified = note.DateSubmitted
	}
	require.NoError(t, p.store.SaveNote(note))
}

// savePref 写用户偏好，from 为修改基线的回调。
func (p *pipeline) savePref(t *testing.T, userID int, modify func(*domain.UserPreference)) {
	t.Helper()
	pref := domain.DefaultPreference(userID)
	modify(pref)
	require.NoError(t, p.store.SavePreference(pref))
}
