package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/lang"
	"bugtrack/backend/internal/storage"
)

// Dispatcher 把缺陷事件编排成入队的通知邮件。
//
// 事件入口统一走 Notify 或其便捷封装；请求收尾调用 Flush，根据
// 本请求是否产生过邮件决定要不要同步 drain。
type Dispatcher struct {
	store    storage.Store
	policy   *access.Policy
	resolver *Resolver
	renderer *Renderer
	queue    *Queue
	catalog  *lang.Catalog
	cfg      *config.Config
	log      *zap.Logger
}

// NewDispatcher 创建通知派发器。
func NewDispatcher(store storage.Store, policy *access.Policy, resolver *Resolver, renderer *Renderer, queue *Queue, catalog *lang.Catalog, cfg *config.Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		policy:   policy,
		resolver: resolver,
		renderer: renderer,
		queue:    queue,
		catalog:  catalog,
		cfg:      cfg,
		log:      log,
	}
}

// Notify 对一次缺陷事件解析收件人并逐人渲染入队。
func (d *Dispatcher) Notify(actingUserID, bugID int, event domain.NotifyType, messageKey string, headerParams []interface{}, extraUserIDs []int) error {
	recipients, err := d.resolver.Resolve(bugID, event, actingUserID, extraUserIDs)
	if err != nil {
		return err
	}
	return d.NotifyRecipients(bugID, event, recipients, messageKey, headerParams...)
}

// NotifyRecipients 对已解析好的收件人集合渲染入队。
//
// 关系类通知要同时校验两个缺陷的可见性，调用方先自行过滤再走
// 这个入口。
func (d *Dispatcher) NotifyRecipients(bugID int, event domain.NotifyType, recipients map[int]string, messageKey string, headerParams ...interface{}) error {
	userIDs := make([]int, 0, len(recipients))
	for id := range recipients {
		userIDs = append(userIDs, id)
	}
	sort.Ints(userIDs)

	for _, userID := range userIDs {
		msg, err := d.renderer.Render(userID, bugID, event, messageKey, headerParams...)
		if err != nil {
			return fmt.Errorf("render notification for user %d: %w", userID, err)
		}
		if _, err := d.queue.Enqueue(recipients[userID], msg.Subject, msg.Body, msg.Headers, false); err != nil {
			return err
		}
	}

	d.log.Info("notification dispatched",
		zap.Int("bug_id", bugID),
		zap.String("event", string(event)),
		zap.Int("recipients", len(userIDs)))
	return nil
}

// MonitorAdded 通知某缺陷新增了监视者。
func (d *Dispatcher) MonitorAdded(actingUserID, bugID, monitorUserID int) error {
	monitorName := fmt.Sprintf("user %d", monitorUserID)
	if user, err := d.store.GetUser(monitorUserID); err == nil {
		monitorName = user.DisplayName()
	}
	return d.Notify(actingUserID, bugID, domain.NotifyMonitor,
		"notify_action_monitor", []interface{}{monitorName}, []int{monitorUserID})
}

// RelationshipAdded 通知两个缺陷之间新建了关系。
//
// 收件人必须同时能看到两侧缺陷，未知关系类型是致命错误。
func (d *Dispatcher) RelationshipAdded(actingUserID, bugID int, relType domain.RelationType, relatedBugID int) error {
	addedKey, _, err := relType.MessageKeys()
	if err != nil {
		return err
	}
	return d.notifyRelationship(actingUserID, bugID, relatedBugID, addedKey)
}

// RelationshipDeleted 通知两个缺陷之间的关系被解除。
func (d *Dispatcher) RelationshipDeleted(actingUserID, bugID int, relType domain.RelationType, relatedBugID int) error {
	_, deletedKey, err := relType.MessageKeys()
	if err != nil {
		return err
	}
	return d.notifyRelationship(actingUserID, bugID, relatedBugID, deletedKey)
}

func (d *Dispatcher) notifyRelationship(actingUserID, bugID, relatedBugID int, messageKey string) error {
	relatedBug, err := d.store.GetBug(relatedBugID)
	if err != nil {
		return fmt.Errorf("load related bug %d: %w", relatedBugID, err)
	}

	recipients, err := d.resolver.Resolve(bugID, domain.NotifyRelation, actingUserID, nil)
	if err != nil {
		return err
	}
	for userID := range recipients {
		ok, err := d.policy.CanViewBug(userID, relatedBug)
		if err != nil {
			return err
		}
		if !ok {
			d.log.Debug("recipient dropped",
				zap.Int("bug_id", bugID),
				zap.Int("user_id", userID),
				zap.String("reason", "no access to related bug"))
			delete(recipients, userID)
		}
	}

	return d.NotifyRecipients(bugID, domain.NotifyRelation, recipients, messageKey,
		domain.FormatBugID(relatedBugID, d.cfg.Email.BugIDPadding))
}

// RelationshipChildResolved 子缺陷解决后通知所有仍未解决的父缺陷。
func (d *Dispatcher) RelationshipChildResolved(actingUserID, childBugID int) error {
	return d.notifyParents(actingUserID, childBugID, "notify_relation_child_resolved")
}

// RelationshipChildClosed 子缺陷关闭后通知所有仍未解决的父缺陷。
func (d *Dispatcher) RelationshipChildClosed(actingUserID, childBugID int) error {
	return d.notifyParents(actingUserID, childBugID, "notify_relation_child_closed")
}

func (d *Dispatcher) notifyParents(actingUserID, childBugID int, messageKey string) error {
	rels, err := d.store.RelationshipsToBug(childBugID)
	if err != nil {
		return fmt.Errorf("load parents of bug %d: %w", childBugID, err)
	}
	childID := domain.FormatBugID(childBugID, d.cfg.Email.BugIDPadding)

	for _, rel := range rels {
		if rel.Type != domain.RelationParentOf {
			continue
		}
		parent, err := d.store.GetBug(rel.SourceBugID)
		if err != nil {
			return fmt.Errorf("load parent bug %d: %w", rel.SourceBugID, err)
		}
		// 已解决的父缺陷不再提醒
		if parent.Status >= d.cfg.Access.ResolvedStatusThreshold {
			continue
		}
		if err := d.Notify(actingUserID, parent.ID, domain.NotifyRelation,
			messageKey, []interface{}{childID}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Reminder 把一条提醒定向发给指定用户，绕过常规收件解析。
//
// 发件人联系方式按 show_user_email 阈值决定是否披露。
func (d *Dispatcher) Reminder(senderUserID int, recipientIDs []int, bugID int, message string) error {
	bug, err := d.store.GetBug(bugID)
	if err != nil {
		return fmt.Errorf("load bug %d for reminder: %w", bugID, err)
	}
	sender, err := d.store.GetUser(senderUserID)
	if err != nil {
		return fmt.Errorf("load reminder sender %d: %w", senderUserID, err)
	}

	paddedID := domain.FormatBugID(bugID, d.cfg.Email.BugIDPadding)
	sorted := append([]int(nil), recipientIDs...)
	sort.Ints(sorted)

	// 先筛出实际可达的收件人，每封提醒里都列出完整的送达名单
	var recipients []*domain.User
	var recipientNames []string
	for _, userID := range sorted {
		user, err := d.store.GetUser(userID)
		if err != nil || !user.Enabled || user.Email == "" {
			continue
		}
		ok, err := d.policy.CanViewBug(userID, bug)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		recipients = append(recipients, user)
		recipientNames = append(recipientNames, user.DisplayName())
	}

	for _, user := range recipients {
		userID := user.ID
		langName, err := d.renderer.recipientLanguage(userID, bug.ProjectID)
		if err != nil {
			return err
		}

		subject := fmt.Sprintf("[%s %s]: %s", d.renderer.projectName(bug.ProjectID), paddedID, bug.Summary)
		body := d.catalog.Trf(langName, "reminder_sent_to", sender.DisplayName(), paddedID) + "\n" +
			d.catalog.Trf(langName, "reminder_sent_by", strings.Join(recipientNames, ", ")) + "\n\n" +
			message + "\n"

		showEmail, err := d.policy.HasProjectLevel(userID, bug.ProjectID, d.cfg.Access.ShowUserEmailThreshold)
		if err != nil {
			return err
		}
		if showEmail && sender.Email != "" {
			body += "\n" + d.catalog.Trf(langName, "reminder_contact", sender.Email) + "\n"
		}

		headers := []domain.EmailHeader{
			{Key: "In-Reply-To", Value: fmt.Sprintf("<%s@%s>", ThreadID(bug), d.renderer.hostname)},
		}
		if _, err := d.queue.Enqueue(user.Email, subject, body, headers, false); err != nil {
			return err
		}
	}
	return nil
}

// Flush 请求收尾钩子：本请求产生过邮件且不依赖批处理（或被要求
// 立即投递）时，同步 drain 一次并复位标志。
func (d *Dispatcher) Flush(ctx context.Context) error {
	generated, force := d.queue.Flags()
	if !generated {
		return nil
	}
	defer d.queue.resetFlags()

	if d.cfg.Email.SendUsingCron && !force {
		return nil
	}
	return d.queue.Drain(ctx, false)
}
