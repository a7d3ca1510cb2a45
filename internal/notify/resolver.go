// Package notify 实现通知流水线：收件解析、邮件渲染、队列与派发。
package notify

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/monitoring"
	"bugtrack/backend/internal/plugin"
	"bugtrack/backend/internal/storage"
)

// Resolver 把一次缺陷事件解析成最终的收件人集合。
//
// 先按来源开关累积候选，再按固定顺序过滤，首个命中的排除规则
// 即丢弃。每一次加入和排除都会留下结构化日志，运维排查"某人为
// 什么收到/没收到邮件"只看这条日志流。
type Resolver struct {
	store   storage.Store
	policy  *access.Policy
	hooks   *plugin.Bus
	cfg     *config.Config
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewResolver 创建收件解析器。
func NewResolver(store storage.Store, policy *access.Policy, hooks *plugin.Bus, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *Resolver {
	return &Resolver{
		store:   store,
		policy:  policy,
		hooks:   hooks,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// Resolve 解析某缺陷事件的收件人，返回用户 ID 到邮箱的映射。
//
// actingUserID 是触发事件的用户，receive_own 关闭时会被排除；
// extraUserIDs 是定向通知的显式收件人（如新加入的监视者）。
func (r *Resolver) Resolve(bugID int, event domain.NotifyType, actingUserID int, extraUserIDs []int) (map[int]string, error) {
	bug, err := r.store.GetBug(bugID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients for bug %d: %w", bugID, err)
	}

	flags := r.cfg.Notify.Flags(event)

	// 候选集按用户去重，记录首个加入来源
	sources := make(map[int]string)
	add := func(userID int, source string) {
		if userID <= 0 {
			return
		}
		if _, ok := sources[userID]; ok {
			return
		}
		sources[userID] = source
		r.log.Debug("recipient candidate",
			zap.Int("bug_id", bugID),
			zap.String("event", string(event)),
			zap.Int("user_id", userID),
			zap.String("source", source))
	}

	if flags.Explicit {
		for _, id := range extraUserIDs {
			add(id, "explicit")
		}
	}
	if flags.Reporter {
		add(bug.ReporterID, "reporter")
	}
	if flags.Handler && bug.HandlerID > 0 {
		add(bug.HandlerID, "handler")
	}
	if flags.Monitors {
		monitors, err := r.store.MonitorsForBug(bugID)
		if err != nil {
			return nil, fmt.Errorf("list monitors for bug %d: %w", bugID, err)
		}
		for _, id := range monitors {
			add(id, "monitor")
		}
	}
	if flags.NoteAuthors {
		authors, err := r.store.NoteAuthors(bugID)
		if err != nil {
			return nil, fmt.Errorf("list note authors for bug %d: %w", bugID, err)
		}
		for _, id := range authors {
			add(id, "note author")
		}
	}
	if flags.ThresholdMin <= flags.ThresholdMax {
		members, err := r.store.MembersWithRoleAtLeast(bug.ProjectID, flags.ThresholdMin)
		if err != nil {
			return nil, fmt.Errorf("list members of project %d: %w", bug.ProjectID, err)
		}
		for _, m := range members {
			if m.AccessLevel > flags.ThresholdMax {
				continue
			}
			// 私有缺陷的角色收件要求成员本人达到私有阈值
			if bug.ViewState.IsPrivate() && !m.AccessLevel.Meets(r.cfg.Access.PrivateBugThreshold) {
				continue
			}
			add(m.UserID, "threshold")
		}
	}
	for _, res := range r.hooks.Includes(bugID, event) {
		for _, id := range res.UserIDs {
			add(id, "plugin:"+res.Source)
		}
	}

	// 排除链按用户 ID 有序执行，日志顺序可复现
	candidates := make([]int, 0, len(sources))
	for id := range sources {
		candidates = append(candidates, id)
	}
	sort.Ints(candidates)

	latestNote, err := r.latestNote(bugID)
	if err != nil {
		return nil, err
	}

	field := event.PreferenceField()
	recipients := make(map[int]string, len(candidates))
	for _, id := range candidates {
		drop := func(reason string) {
			r.metrics.RecordRecipientDropped(reason)
			r.log.Debug("recipient dropped",
				zap.Int("bug_id", bugID),
				zap.String("event", string(event)),
				zap.Int("user_id", id),
				zap.String("source", sources[id]),
				zap.String("reason", reason))
		}

		if id == actingUserID && !r.cfg.Email.ReceiveOwn {
			drop("own action")
			continue
		}

		user, err := r.store.GetUser(id)
		if errors.Is(err, storage.ErrUserNotFound) {
			drop("user missing")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load user %d: %w", id, err)
		}
		if !user.Enabled {
			drop("user disabled")
			continue
		}

		pref, err := r.store.GetPreference(id, bug.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("load preference of user %d: %w", id, err)
		}
		if !pref.Wants(field) {
			drop("preference " + string(field) + " off")
			continue
		}
		if bug.Severity < pref.MinSeverity(field) {
			drop("below min severity")
			continue
		}

		canView, err := r.policy.CanViewBug(id, bug)
		if err != nil {
			return nil, fmt.Errorf("check bug access of user %d: %w", id, err)
		}
		if !canView {
			drop("no bug access")
			continue
		}
		// 最近一次变更是私有注释时，不能看到该注释的人也不该被提示
		if latestNote != nil && bug.LastUpdated.Equal(latestNote.LastModified) {
			canViewNote, err := r.policy.CanViewNote(id, bug, latestNote)
			if err != nil {
				return nil, fmt.Errorf("check note access of user %d: %w", id, err)
			}
			if !canViewNote {
				drop("no access to latest note")
				continue
			}
		}

		if source, excluded := r.hooks.Excluded(bugID, event, id); excluded {
			drop("plugin:" + source)
			continue
		}

		if user.Email == "" {
			drop("blank email")
			continue
		}

		recipients[id] = user.Email
		r.metrics.RecordRecipientResolved()
		r.log.Debug("recipient resolved",
			zap.Int("bug_id", bugID),
			zap.String("event", string(event)),
			zap.Int("user_id", id),
			zap.String("source", sources[id]))
	}

	return recipients, nil
}

// latestNote 取缺陷最近修改的注释，无注释时返回 nil。
func (r *Resolver) latestNote(bugID int) (*domain.Note, error) {
	notes, err := r.store.ListNotes(bugID)
	if err != nil {
		return nil, fmt.Errorf("list notes of bug %d: %w", bugID, err)
	}
	if len(notes) == 0 {
		return nil, nil
	}
	latest := notes[0]
	for _, n := range notes[1:] {
		if n.LastModified.After(latest.LastModified) ||
			(n.LastModified.Equal(latest.LastModified) && n.ID > latest.ID) {
			latest = n
		}
	}
	return &latest, nil
}
