package service

import (
	"context"
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
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/plugin"
	"bugtrack/backend/internal/storage/memory"
)

var seedTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// fixture 组装基于内存存储的服务层测试环境。
type fixture struct {
	store      *memory.Store
	cfg        *config.Config
	recorder   *mailer.Recorder
	dispatcher *notify.Dispatcher
	noteCache  *cache.NoteCache
	notes      *NoteService
	bugs       *BugService
	archived   []string
}

func serviceConfig() *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			Enabled:         true,
			FromAddress:     "bugs@example.com",
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
			SetViewStatusThreshold:  domain.AccessDeveloper,
			ViewHandlerThreshold:    domain.AccessViewer,
			RoadmapViewThreshold:    domain.AccessViewer,
			ViewHistoryThreshold:    domain.AccessViewer,
			TimeTrackingThreshold:   domain.AccessDeveloper,
			ShowUserEmailThreshold:  domain.AccessDeveloper,
			SponsorTotalThreshold:   domain.AccessViewer,
			SponsorDetailsThreshold: domain.AccessDeveloper,
			HistoryDefaultVisible:   true,
			TimeTrackingEnabled:     true,
			EnableSponsorship:       true,
			ResolvedStatusThreshold: domain.StatusResolved,
		},
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := serviceConfig()
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

	queue := notify.NewQueue(store, recorder, nil, cfg, nil, "tracker.test", log)
	resolver := notify.NewResolver(store, policy, hooks, cfg, nil, log)
	renderer := notify.NewRenderer(store, policy, noteCache, catalog, hooks, cfg, "tracker.test")
	dispatcher := notify.NewDispatcher(store, policy, resolver, renderer, queue, catalog, cfg, log)

	f := &fixture{
		store:      store,
		cfg:        cfg,
		recorder:   recorder,
		dispatcher: dispatcher,
		noteCache:  noteCache,
	}
	archiver := func(noteID int, oldText string, _ time.Time) {
		f.archived = append(f.archived, oldText)
	}
	f.notes = NewNoteService(store, noteCache, dispatcher, cfg, archiver, log)
	f.bugs = NewBugService(store, noteCache, dispatcher, cfg, log)
	return f
}

// flush 把生成的通知从队列投递到记录器。
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dispatcher.Flush(context.Background()))
}

func (f *fixture) seedUser(t *testing.T, id int, name string, level domain.AccessLevel, email string) {
	t.Helper()
	require.NoError(t, f.store.SaveUser(&domain.User{
		ID:          id,
		Name:        name,
		Email:       email,
		Enabled:     true,
		AccessLevel: level,
		Language:    "auto",
	}))
}

func (f *fixture) seedProject(t *testing.T, id int, name string) {
	t.Helper()
	require.NoError(t, f.store.SaveProject(&domain.Project{ID: id, Name: name}))
}

func (f *fixture) seedBug(t *testing.T, bug *domain.Bug) {
	t.Helper()
	if bug.DateSubmitted.IsZero() {
		bug.DateSubmitted = seedTime
	}
	if bug.LastUpdated.IsZero() {
		bug.LastUpdated = bug.DateSubmitted
	}
	require.NoError(t, f.store.SaveBug(bug))
}

// seedScene 准备一个项目、报告人、处理人和一个已指派的缺陷。
func (f *fixture) seedScene(t *testing.T) *domain.Bug {
	t.Helper()
	f.seedProject(t, 1, "core")
	f.seedUser(t, 1, "alice", domain.AccessReporter, "alice@example.com")
	f.seedUser(t, 2, "bob", domain.AccessDeveloper, "bob@example.com")
	bug := &domain.Bug{
		ID:         10,
		ProjectID:  1,
		ReporterID: 1,
		HandlerID:  2,
		Status:     domain.StatusAssigned,
		Severity:   domain.SeverityMajor,
		Priority:   domain.PriorityNormal,
		ViewState:  domain.ViewPublic,
		Summary:    "crash on save",
	}
	f.seedBug(t, bug)
	return bug
}
