package notify

import (
	"fmt"
	"slices"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// VisibleBug 是按某收件人身份裁剪过的缺陷投影。
//
// 每个收件人都重新构建一份，字段按其角色阈值删减，从不落库。
type VisibleBug struct {
	Bug         domain.Bug
	ProjectName string

	ReporterName string
	HandlerName  string // 空串表示未指派或被阈值隐藏
	ShowHandler  bool

	TargetVersion  string // 空串表示无值或被阈值隐藏
	ShowResolution bool

	CustomFields []storage.BugFieldValue

	Relationships []domain.Relationship

	ShowSponsorship    bool
	SponsorshipTotal   int
	ShowSponsorDetails bool
	Sponsorships       []domain.Sponsorship
	SponsorNames       map[int]string

	Notes       []domain.Note // 收件人可见的注释，按其排序偏好排列
	AuthorNames map[int]string
	AuthorRoles map[int]domain.AccessLevel
	ShowTimes   bool // 工时字段是否可见

	ShowHistory bool
	History     []domain.HistoryEvent
}

// buildSnapshot 以收件人身份构建缺陷投影。
func (r *Renderer) buildSnapshot(recipientID int, bug *domain.Bug) (*VisibleBug, error) {
	project, err := r.store.GetProject(bug.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", bug.ProjectID, err)
	}

	snap := &VisibleBug{
		Bug:         *bug,
		ProjectName: project.Name,
		AuthorNames: make(map[int]string),
		AuthorRoles: make(map[int]domain.AccessLevel),
	}

	snap.ReporterName = r.userName(bug.ReporterID)

	showHandler, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.ViewHandlerThreshold)
	if err != nil {
		return nil, err
	}
	snap.ShowHandler = showHandler && bug.HandlerID > 0
	if snap.ShowHandler {
		snap.HandlerName = r.userName(bug.HandlerID)
	}

	if bug.TargetVersion != "" {
		showRoadmap, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.RoadmapViewThreshold)
		if err != nil {
			return nil, err
		}
		if showRoadmap {
			snap.TargetVersion = bug.TargetVersion
		}
	}

	snap.ShowResolution = bug.Status >= r.cfg.Access.ResolvedStatusThreshold

	fields, err := r.store.FieldsForBug(bug.ID)
	if err != nil {
		return nil, fmt.Errorf("load custom fields of bug %d: %w", bug.ID, err)
	}
	recipientLevel, err := r.policy.BugLevel(recipientID, bug)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if recipientLevel.Meets(f.Field.ReadThreshold) {
			snap.CustomFields = append(snap.CustomFields, f)
		}
	}

	rels, err := r.store.RelationshipsForBug(bug.ID)
	if err != nil {
		return nil, fmt.Errorf("load relationships of bug %d: %w", bug.ID, err)
	}
	snap.Relationships = rels

	if r.cfg.Access.EnableSponsorship {
		showTotal, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.SponsorTotalThreshold)
		if err != nil {
			return nil, err
		}
		if showTotal {
			sponsorships, err := r.store.SponsorshipsForBug(bug.ID)
			if err != nil {
				return nil, fmt.Errorf("load sponsorships of bug %d: %w", bug.ID, err)
			}
			snap.ShowSponsorship = len(sponsorships) > 0
			for _, s := range sponsorships {
				snap.SponsorshipTotal += s.Amount
			}

			// 明细行另有独立阈值，够总额级别不代表能看到具体是谁赞助的
			showDetails, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.SponsorDetailsThreshold)
			if err != nil {
				return nil, err
			}
			if showDetails && len(sponsorships) > 0 {
				snap.ShowSponsorDetails = true
				snap.Sponsorships = sponsorships
				snap.SponsorNames = make(map[int]string)
				for _, s := range sponsorships {
					if _, seen := snap.SponsorNames[s.UserID]; !seen {
						snap.SponsorNames[s.UserID] = r.userName(s.UserID)
					}
				}
			}
		}
	}

	if r.cfg.Email.ShowNotes {
		notes, err := r.notes.ListNotes(bug.ID)
		if err != nil {
			return nil, fmt.Errorf("list notes of bug %d: %w", bug.ID, err)
		}
		for i := range notes {
			note := notes[i]
			ok, err := r.policy.CanViewNote(recipientID, bug, &note)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			snap.Notes = append(snap.Notes, note)
			if _, seen := snap.AuthorNames[note.ReporterID]; !seen {
				snap.AuthorNames[note.ReporterID] = r.userName(note.ReporterID)
				level, err := r.policy.ProjectLevel(note.ReporterID, bug.ProjectID)
				if err != nil {
					return nil, err
				}
				snap.AuthorRoles[note.ReporterID] = level
			}
		}
		if r.cfg.Access.TimeTrackingEnabled {
			showTimes, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.TimeTrackingThreshold)
			if err != nil {
				return nil, err
			}
			snap.ShowTimes = showTimes
		}

		// 收件人偏好决定注释条数上限和排序方向；上限只留最新的几条
		pref, err := r.store.GetPreference(recipientID, bug.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("load preference of user %d: %w", recipientID, err)
		}
		if limit := pref.EmailNoteLimit; limit > 0 && len(snap.Notes) > limit {
			snap.Notes = snap.Notes[len(snap.Notes)-limit:]
		}
		if pref.NoteOrder == domain.NoteOrderDesc {
			slices.Reverse(snap.Notes)
		}
	}

	if r.cfg.Access.HistoryDefaultVisible {
		showHistory, err := r.policy.HasBugLevel(recipientID, bug, r.cfg.Access.ViewHistoryThreshold)
		if err != nil {
			return nil, err
		}
		if showHistory {
			history, err := r.store.HistoryForBug(bug.ID)
			if err != nil {
				return nil, fmt.Errorf("load history of bug %d: %w", bug.ID, err)
			}
			snap.ShowHistory = len(history) > 0
			snap.History = history
		}
	}

	return snap, nil
}

// projectName 取项目名，项目不存在时退化为编号占位。
func (r *Renderer) projectName(projectID int) string {
	project, err := r.store.GetProject(projectID)
	if err != nil {
		return fmt.Sprintf("project %d", projectID)
	}
	return project.Name
}

// userName 取用户显示名，用户不存在时退化为编号占位。
func (r *Renderer) userName(userID int) string {
	user, err := r.store.GetUser(userID)
	if err != nil {
		return fmt.Sprintf("user %d", userID)
	}
	return user.DisplayName()
}
