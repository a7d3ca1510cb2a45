package access

import (
	"sync"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// Policy 基于项目成员级别和可见性阈值做访问裁决。
//
// 级别查询按 (用户, 项目) 记忆化，一个 Policy 实例的生命周期应当
// 限定在单次通知流水线内，跨请求复用会读到过期的成员关系。
type Policy struct {
	projects storage.ProjectRepository
	cfg      config.AccessConfig

	mu   sync.Mutex
	memo map[levelKey]domain.AccessLevel
}

type levelKey struct {
	userID    int
	projectID int
}

// NewPolicy 创建访问裁决器。
func NewPolicy(projects storage.ProjectRepository, cfg config.AccessConfig) *Policy {
	return &Policy{
		projects: projects,
		cfg:      cfg,
		memo:     make(map[levelKey]domain.AccessLevel),
	}
}

// ProjectLevel 取用户在项目中的有效访问级别。
func (p *Policy) ProjectLevel(userID, projectID int) (domain.AccessLevel, error) {
	key := levelKey{userID: userID, projectID: projectID}

	p.mu.Lock()
	if level, ok := p.memo[key]; ok {
		p.mu.Unlock()
		return level, nil
	}
	p.mu.Unlock()

	level, err := p.projects.ProjectAccessLevel(userID, projectID)
	if err != nil {
		return domain.AccessAnybody, err
	}

	p.mu.Lock()
	p.memo[key] = level
	p.mu.Unlock()
	return level, nil
}

// HasProjectLevel 判断用户在项目中是否达到给定级别。
func (p *Policy) HasProjectLevel(userID, projectID int, threshold domain.AccessLevel) (bool, error) {
	level, err := p.ProjectLevel(userID, projectID)
	if err != nil {
		return false, err
	}
	return level.Meets(threshold), nil
}

// BugLevel 取用户对某缺陷的有效访问级别。
//
// 私有缺陷的报告人即便项目级别不足，也按报告人身份保有查看资格，
// 返回私有缺陷阈值作为其有效级别。
func (p *Policy) BugLevel(userID int, bug *domain.Bug) (domain.AccessLevel, error) {
	level, err := p.ProjectLevel(userID, bug.ProjectID)
	if err != nil {
		return domain.AccessAnybody, err
	}
	if bug.ViewState.IsPrivate() && !level.Meets(p.cfg.PrivateBugThreshold) {
		if userID == bug.ReporterID || userID == bug.HandlerID {
			return p.cfg.PrivateBugThreshold, nil
		}
	}
	return level, nil
}

// CanViewBug 判断用户能否查看缺陷。
func (p *Policy) CanViewBug(userID int, bug *domain.Bug) (bool, error) {
	level, err := p.BugLevel(userID, bug)
	if err != nil {
		return false, err
	}
	if bug.ViewState.IsPrivate() {
		return level.Meets(p.cfg.PrivateBugThreshold), nil
	}
	return level.Meets(p.cfg.ViewBugThreshold), nil
}

// CanViewNote 判断用户能否查看某条注释。注释作者始终可见自己的私有注释。
func (p *Policy) CanViewNote(userID int, bug *domain.Bug, note *domain.Note) (bool, error) {
	ok, err := p.CanViewBug(userID, bug)
	if err != nil || !ok {
		return false, err
	}
	if !note.ViewState.IsPrivate() {
		return true, nil
	}
	if userID == note.ReporterID {
		return true, nil
	}
	return p.HasProjectLevel(userID, bug.ProjectID, p.cfg.PrivateNoteThreshold)
}

// HasBugLevel 判断用户对缺陷是否达到给定级别。
func (p *Policy) HasBugLevel(userID int, bug *domain.Bug, threshold domain.AccessLevel) (bool, error) {
	level, err := p.BugLevel(userID, bug)
	if err != nil {
		return false, err
	}
	return level.Meets(threshold), nil
}
