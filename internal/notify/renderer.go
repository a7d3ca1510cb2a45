package notify

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/cache"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/lang"
	"bugtrack/backend/internal/plugin"
	"bugtrack/backend/internal/storage"
)

const bodyDivider = "======================================================================"

// Message 渲染产物：某收件人的主题、正文和线索邮件头。
type Message struct {
	Subject string
	Body    string
	Headers []domain.EmailHeader
}

// Renderer 为单个收件人渲染本地化、按权限裁剪过的通知邮件。
//
// 语言是显式参数链路：收件人偏好语言在这里折算，不依赖任何
// 进程级的当前语言状态。
type Renderer struct {
	store    storage.Store
	policy   *access.Policy
	notes    *cache.NoteCache
	catalog  *lang.Catalog
	hooks    *plugin.Bus
	cfg      *config.Config
	hostname string
}

// NewRenderer 创建邮件渲染器，hostname 用于补全线索邮件头。
func NewRenderer(store storage.Store, policy *access.Policy, notes *cache.NoteCache, catalog *lang.Catalog, hooks *plugin.Bus, cfg *config.Config, hostname string) *Renderer {
	if hostname == "" {
		hostname = "localhost"
	}
	return &Renderer{
		store:    store,
		policy:   policy,
		notes:    notes,
		catalog:  catalog,
		hooks:    hooks,
		cfg:      cfg,
		hostname: hostname,
	}
}

// ThreadID 返回缺陷的稳定线索标识，同一缺陷的所有通知共享。
func ThreadID(bug *domain.Bug) string {
	sum := md5.Sum([]byte(strconv.Itoa(bug.ID) + strconv.FormatInt(bug.DateSubmitted.Unix(), 10)))
	return fmt.Sprintf("%x", sum)
}

// Render 为一位收件人渲染通知。
//
// messageKey 为空时按通知类型取默认导语；headerParams 填充导语中
// 的占位符（关系通知里是对端缺陷的补零编号）。
func (r *Renderer) Render(recipientID, bugID int, event domain.NotifyType, messageKey string, headerParams ...interface{}) (*Message, error) {
	bug, err := r.store.GetBug(bugID)
	if err != nil {
		return nil, fmt.Errorf("render notification for bug %d: %w", bugID, err)
	}

	langName, err := r.recipientLanguage(recipientID, bug.ProjectID)
	if err != nil {
		return nil, err
	}

	snap, err := r.buildSnapshot(recipientID, bug)
	if err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("[%s %s]: %s",
		snap.ProjectName,
		domain.FormatBugID(bug.ID, r.cfg.Email.BugIDPadding),
		bug.Summary)
	subject = r.hooks.Subject(bugID, subject)

	var header string
	if messageKey == "" {
		header = r.catalog.ActionLine(langName, event)
	} else {
		header = r.catalog.Tr(langName, messageKey)
	}
	if len(headerParams) > 0 {
		header = fmt.Sprintf(header, headerParams...)
	}

	body := r.renderBody(langName, header, snap)

	threadRef := fmt.Sprintf("<%s@%s>", ThreadID(bug), r.hostname)
	var headers []domain.EmailHeader
	if event == domain.NotifyNew {
		headers = append(headers, domain.EmailHeader{Key: "Message-ID", Value: threadRef})
	} else {
		headers = append(headers, domain.EmailHeader{Key: "In-Reply-To", Value: threadRef})
		headers = append(headers, domain.EmailHeader{Key: "References", Value: threadRef})
	}

	return &Message{Subject: subject, Body: body, Headers: headers}, nil
}

// recipientLanguage 折算收件人语言：偏好语言优先，auto 退到账号语言。
func (r *Renderer) recipientLanguage(userID, projectID int) (string, error) {
	pref, err := r.store.GetPreference(userID, projectID)
	if err != nil {
		return "", fmt.Errorf("load preference of user %d: %w", userID, err)
	}
	chosen := pref.Language
	if chosen == "" || chosen == "auto" {
		if user, err := r.store.GetUser(userID); err == nil {
			chosen = user.Language
		}
	}
	return r.catalog.Resolve(chosen), nil
}

func (r *Renderer) renderBody(langName, header string, snap *VisibleBug) string {
	pad := r.cfg.Email.PaddingLength
	var b strings.Builder

	field := func(labelKey, value string) {
		label := r.catalog.Tr(langName, labelKey) + ":"
		fmt.Fprintf(&b, "%-*s %s\n", pad, label, value)
	}

	b.WriteString(bodyDivider + "\n")
	b.WriteString(header + "\n")
	b.WriteString(bodyDivider + "\n")

	bug := snap.Bug
	field("label_summary", bug.Summary)
	field("label_reported_by", snap.ReporterName)
	if snap.ShowHandler {
		field("label_assigned_to", snap.HandlerName)
	}
	field("label_project", snap.ProjectName)
	field("label_bug_id", domain.FormatBugID(bug.ID, r.cfg.Email.BugIDPadding))
	for _, cf := range snap.CustomFields {
		label := cf.Field.Name + ":"
		fmt.Fprintf(&b, "%-*s %s\n", pad, label, r.renderCustomField(cf))
	}
	field("label_severity", r.catalog.SeverityName(langName, bug.Severity))
	field("label_priority", r.catalog.PriorityName(langName, bug.Priority))
	if snap.ShowResolution {
		field("label_status", fmt.Sprintf("%s (%s)",
			r.catalog.StatusName(langName, bug.Status),
			r.catalog.ResolutionName(langName, bug.Resolution)))
	} else {
		field("label_status", r.catalog.StatusName(langName, bug.Status))
	}
	if snap.TargetVersion != "" {
		field("label_target_version", snap.TargetVersion)
	}
	field("label_view_state", r.catalog.ViewStateName(langName, bug.ViewState))
	field("label_date_submitted", bug.DateSubmitted.Format(r.cfg.Email.FullDateFormat))
	field("label_last_modified", bug.LastUpdated.Format(r.cfg.Email.FullDateFormat))

	b.WriteString(bodyDivider + "\n")
	field("label_description", "")
	b.WriteString(bug.Description + "\n")

	if len(snap.Relationships) > 0 {
		b.WriteString(bodyDivider + "\n")
		for _, rel := range snap.Relationships {
			other := rel.DestBugID
			if other == bug.ID {
				other = rel.SourceBugID
			}
			fmt.Fprintf(&b, "%s %s\n",
				r.catalog.Tr(langName, "relation_"+strconv.Itoa(int(rel.Type))),
				domain.FormatBugID(other, r.cfg.Email.BugIDPadding))
		}
	}

	if snap.ShowSponsorship {
		b.WriteString(bodyDivider + "\n")
		field("label_sponsor_total", strconv.Itoa(snap.SponsorshipTotal))
		if snap.ShowSponsorDetails {
			for _, s := range snap.Sponsorships {
				fmt.Fprintf(&b, " %s: %d\n", snap.SponsorNames[s.UserID], s.Amount)
			}
		}
	}

	if len(snap.Notes) > 0 {
		b.WriteString(bodyDivider + "\n")
		field("label_notes", "")
		for i := range snap.Notes {
			r.renderNote(&b, langName, snap, &snap.Notes[i])
		}
	}

	if snap.ShowHistory {
		b.WriteString(bodyDivider + "\n")
		field("label_history", "")
		for _, h := range snap.History {
			fmt.Fprintf(&b, "%s  %s  %s: %s => %s\n",
				h.Date.Format(r.cfg.Email.DateFormat),
				r.userName(h.UserID),
				h.Field, h.OldValue, h.NewValue)
		}
	}

	b.WriteString(bodyDivider + "\n")
	if r.cfg.Email.BaseURL != "" {
		fmt.Fprintf(&b, "%s%d\n", r.cfg.Email.BaseURL, bug.ID)
	}
	return b.String()
}

func (r *Renderer) renderNote(b *strings.Builder, langName string, snap *VisibleBug, note *domain.Note) {
	b.WriteString("\n")
	fmt.Fprintf(b, " %s%s  %s (%s)  %s\n",
		r.cfg.Email.NoteLinkTag,
		domain.FormatBugID(note.ID, r.cfg.Email.NoteIDPadding),
		snap.AuthorNames[note.ReporterID],
		r.roleName(langName, snap.AuthorRoles[note.ReporterID]),
		note.DateSubmitted.Format(r.cfg.Email.DateFormat))
	if note.Edited() {
		fmt.Fprintf(b, " %s\n", r.catalog.Trf(langName, "label_edited_on", note.LastModified.Format(r.cfg.Email.DateFormat)))
	}
	if snap.ShowTimes && note.TimeTracking > 0 {
		fmt.Fprintf(b, " %s: %s\n",
			r.catalog.Tr(langName, "label_time_tracking"),
			FormatMinutes(note.TimeTracking))
	}
	if note.Text != "" {
		fmt.Fprintf(b, " %s\n", strings.ReplaceAll(note.Text, "\n", "\n "))
	}
}

// roleName 把访问级别折算成角色名（借用阈值枚举的展示名）。
func (r *Renderer) roleName(langName string, level domain.AccessLevel) string {
	switch {
	case level.Meets(domain.AccessAdministrator):
		return "administrator"
	case level.Meets(domain.AccessManager):
		return "manager"
	case level.Meets(domain.AccessDeveloper):
		return "developer"
	case level.Meets(domain.AccessUpdater):
		return "updater"
	case level.Meets(domain.AccessReporter):
		return "reporter"
	default:
		return "viewer"
	}
}

// renderCustomField 按字段类型渲染取值。
func (r *Renderer) renderCustomField(cf storage.BugFieldValue) string {
	switch cf.Field.Type {
	case domain.FieldDate:
		if secs, err := strconv.ParseInt(cf.Value, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(r.cfg.Email.DateFormat)
		}
		return cf.Value
	case domain.FieldCheckbox:
		if cf.Value == "1" || cf.Value == "true" {
			return "X"
		}
		return ""
	default:
		return cf.Value
	}
}

// FormatMinutes 把分钟数渲染为 HH:MM。
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
