package memory

import (
	"sort"
	"sync"
	"time"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// Store 使用内存保存缺陷与通知数据，主要用于开发验证与测试。
type Store struct {
	mu            sync.RWMutex
	bugs          map[int]*domain.Bug
	notes         map[int]*domain.Note
	noteTexts     map[int]string // textID -> 正文
	notesByBug    map[int][]int  // bugID -> noteID，保持插入顺序
	users         map[int]*domain.User
	prefs         map[int]map[int]*domain.UserPreference // userID -> projectID -> pref
	projects      map[int]*domain.Project
	projectUsers  map[int]map[int]domain.AccessLevel // projectID -> userID -> level
	monitors      map[int]map[int]bool               // bugID -> userID
	relationships map[int]*domain.Relationship
	history       map[int][]domain.HistoryEvent
	sponsorships  map[int][]domain.Sponsorship
	customFields  map[int]*domain.CustomField
	fieldValues   map[int]map[int]string // bugID -> fieldID -> value
	queue         map[string]*domain.QueuedEmail

	nextBugID   int
	nextNoteID  int
	nextTextID  int
	nextRelID   int
	nextEventID int
	nextPrefID  int
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		bugs:          make(map[int]*domain.Bug),
		notes:         make(map[int]*domain.Note),
		noteTexts:     make(map[int]string),
		notesByBug:    make(map[int][]int),
		users:         make(map[int]*domain.User),
		prefs:         make(map[int]map[int]*domain.UserPreference),
		projects:      make(map[int]*domain.Project),
		projectUsers:  make(map[int]map[int]domain.AccessLevel),
		monitors:      make(map[int]map[int]bool),
		relationships: make(map[int]*domain.Relationship),
		history:       make(map[int][]domain.HistoryEvent),
		sponsorships:  make(map[int][]domain.Sponsorship),
		customFields:  make(map[int]*domain.CustomField),
		fieldValues:   make(map[int]map[int]string),
		queue:         make(map[string]*domain.QueuedEmail),
	}
}

// ========== Bug Repository ==========

// SaveBug 保存缺陷，ID 为 0 时自动分配。
func (s *Store) SaveBug(bug *domain.Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bug.ID == 0 {
		s.nextBugID++
		bug.ID = s.nextBugID
	} else if bug.ID > s.nextBugID {
		s.nextBugID = bug.ID
	}
	now := time.Now().UTC()
	if bug.DateSubmitted.IsZero() {
		bug.DateSubmitted = now
	}
	if bug.LastUpdated.IsZero() {
		bug.LastUpdated = bug.DateSubmitted
	}
	copied := *bug
	s.bugs[bug.ID] = &copied
	return nil
}

// GetBug 根据 ID 获取缺陷。
func (s *Store) GetBug(id int) (*domain.Bug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bug, ok := s.bugs[id]
	if !ok {
		return nil, storage.ErrBugNotFound
	}
	copied := *bug
	return &copied, nil
}

// UpdateBug 更新缺陷字段。
func (s *Store) UpdateBug(bug *domain.Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bugs[bug.ID]; !ok {
		return storage.ErrBugNotFound
	}
	copied := *bug
	s.bugs[bug.ID] = &copied
	return nil
}

// TouchBug 只刷新缺陷的 last_updated 时间戳。
func (s *Store) TouchBug(id int, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bug, ok := s.bugs[id]
	if !ok {
		return storage.ErrBugNotFound
	}
	bug.LastUpdated = when
	return nil
}

// DeleteBug 删除缺陷。
func (s *Store) DeleteBug(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bugs[id]; !ok {
		return storage.ErrBugNotFound
	}
	delete(s.bugs, id)
	delete(s.monitors, id)
	delete(s.history, id)
	delete(s.sponsorships, id)
	delete(s.fieldValues, id)
	return nil
}

// ========== User Repository ==========

// SaveUser 保存用户，ID 为 0 时按最大 ID 递增分配。
func (s *Store) SaveUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		maxID := 0
		for id := range s.users {
			if id > maxID {
				maxID = id
			}
		}
		user.ID = maxID + 1
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// GetUser 根据 ID 获取用户。
func (s *Store) GetUser(id int) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetPreference 取用户偏好，项目级优先，其次全局行，最后默认值。
func (s *Store) GetPreference(userID, projectID int) (*domain.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byProject, ok := s.prefs[userID]; ok {
		if pref, ok := byProject[projectID]; ok {
			copied := *pref
			return &copied, nil
		}
		if pref, ok := byProject[0]; ok {
			copied := *pref
			return &copied, nil
		}
	}
	return domain.DefaultPreference(userID), nil
}

// SavePreference 保存用户偏好。
func (s *Store) SavePreference(pref *domain.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pref.ID == 0 {
		s.nextPrefID++
		pref.ID = s.nextPrefID
	}
	if _, ok := s.prefs[pref.UserID]; !ok {
		s.prefs[pref.UserID] = make(map[int]*domain.UserPreference)
	}
	copied := *pref
	s.prefs[pref.UserID][pref.ProjectID] = &copied
	return nil
}

// ========== Project Repository ==========

// SaveProject 保存项目。
func (s *Store) SaveProject(project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.ID == 0 {
		maxID := 0
		for id := range s.projects {
			if id > maxID {
				maxID = id
			}
		}
		project.ID = maxID + 1
	}
	copied := *project
	s.projects[project.ID] = &copied
	return nil
}

// GetProject 根据 ID 获取项目。
func (s *Store) GetProject(id int) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, storage.ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

// SetProjectAccess 设置用户在项目中的角色级别。
func (s *Store) SetProjectAccess(projectID, userID int, level domain.AccessLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projectUsers[projectID]; !ok {
		s.projectUsers[projectID] = make(map[int]domain.AccessLevel)
	}
	s.projectUsers[projectID][userID] = level
	return nil
}

// ProjectAccessLevel 取用户在项目中的有效级别。
func (s *Store) ProjectAccessLevel(userID, projectID int) (domain.AccessLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byUser, ok := s.projectUsers[projectID]; ok {
		if level, ok := byUser[userID]; ok {
			return level, nil
		}
	}
	user, ok := s.users[userID]
	if !ok {
		return domain.AccessAnybody, storage.ErrUserNotFound
	}
	return user.AccessLevel, nil
}

// MembersWithRoleAtLeast 列出项目中级别不低于 min 的成员。
func (s *Store) MembersWithRoleAtLeast(projectID int, min domain.AccessLevel) ([]domain.ProjectUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	var members []domain.ProjectUser
	for userID, level := range s.projectUsers[projectID] {
		seen[userID] = true
		if level.Meets(min) {
			members = append(members, domain.ProjectUser{ProjectID: projectID, UserID: userID, AccessLevel: level})
		}
	}
	// 无项目级行的用户按全局级别参与
	for userID, user := range s.users {
		if seen[userID] || !user.Enabled {
			continue
		}
		if user.AccessLevel.Meets(min) {
			members = append(members, domain.ProjectUser{ProjectID: projectID, UserID: userID, AccessLevel: user.AccessLevel})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

// ========== Monitor Repository ==========

// AddMonitor 添加缺陷监视关系。
func (s *Store) AddMonitor(bugID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[bugID]; !ok {
		s.monitors[bugID] = make(map[int]bool)
	}
	s.monitors[bugID][userID] = true
	return nil
}

// RemoveMonitor 移除缺陷监视关系。
func (s *Store) RemoveMonitor(bugID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.monitors[bugID], userID)
	return nil
}

// MonitorsForBug 列出监视缺陷的去重用户 ID。
func (s *Store) MonitorsForBug(bugID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.monitors[bugID]))
	for userID := range s.monitors[bugID] {
		ids = append(ids, userID)
	}
	sort.Ints(ids)
	return ids, nil
}

// ========== Relationship Repository ==========

// SaveRelationship 保存缺陷关系。
func (s *Store) SaveRelationship(rel *domain.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.relationships {
		if existing.SourceBugID == rel.SourceBugID && existing.DestBugID == rel.DestBugID {
			return storage.ErrRelationshipExists
		}
	}
	if rel.ID == 0 {
		s.nextRelID++
		rel.ID = s.nextRelID
	}
	copied := *rel
	s.relationships[rel.ID] = &copied
	return nil
}

// GetRelationship 按 ID 取缺陷关系。
func (s *Store) GetRelationship(id int) (*domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[id]
	if !ok {
		return nil, storage.ErrRelationshipNotFound
	}
	copied := *rel
	return &copied, nil
}

// DeleteRelationship 删除缺陷关系。
func (s *Store) DeleteRelationship(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.relationships, id)
	return nil
}

// RelationshipsForBug 列出以给定缺陷为源的关系。
func (s *Store) RelationshipsForBug(bugID int) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []domain.Relationship
	for _, rel := range s.relationships {
		if rel.SourceBugID == bugID {
			rels = append(rels, *rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// RelationshipsToBug 列出以给定缺陷为目标的关系。
func (s *Store) RelationshipsToBug(destBugID int) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []domain.Relationship
	for _, rel := range s.relationships {
		if rel.DestBugID == destBugID {
			rels = append(rels, *rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// ========== History / Sponsorship / Custom Field ==========

// RecordHistory 追加一条变更历史。
func (s *Store) RecordHistory(event *domain.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	event.ID = s.nextEventID
	if event.Date.IsZero() {
		event.Date = time.Now().UTC()
	}
	s.history[event.BugID] = append(s.history[event.BugID], *event)
	return nil
}

// HistoryForBug 按时间顺序返回缺陷的变更历史。
func (s *Store) HistoryForBug(bugID int) ([]domain.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.HistoryEvent, len(s.history[bugID]))
	copy(events, s.history[bugID])
	return events, nil
}

// SaveSponsorship 保存赞助记录。
func (s *Store) SaveSponsorship(sp *domain.Sponsorship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.DateSubmitted.IsZero() {
		sp.DateSubmitted = time.Now().UTC()
	}
	sp.ID = len(s.sponsorships[sp.BugID]) + 1
	s.sponsorships[sp.BugID] = append(s.sponsorships[sp.BugID], *sp)
	return nil
}

// SponsorshipsForBug 返回缺陷的全部赞助记录。
func (s *Store) SponsorshipsForBug(bugID int) ([]domain.Sponsorship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sps := make([]domain.Sponsorship, len(s.sponsorships[bugID]))
	copy(sps, s.sponsorships[bugID])
	return sps, nil
}

// SaveCustomField 保存自定义字段定义。
func (s *Store) SaveCustomField(field *domain.CustomField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field.ID == 0 {
		field.ID = len(s.customFields) + 1
	}
	copied := *field
	s.customFields[field.ID] = &copied
	return nil
}

// SetCustomFieldValue 设置缺陷上自定义字段的取值。
func (s *Store) SetCustomFieldValue(fieldID, bugID int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fieldValues[bugID]; !ok {
		s.fieldValues[bugID] = make(map[int]string)
	}
	s.fieldValues[bugID][fieldID] = value
	return nil
}

// FieldsForBug 返回缺陷上有值的自定义字段及取值。
func (s *Store) FieldsForBug(bugID int) ([]storage.BugFieldValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var values []storage.BugFieldValue
	for fieldID, value := range s.fieldValues[bugID] {
		field, ok := s.customFields[fieldID]
		if !ok {
			continue
		}
		values = append(values, storage.BugFieldValue{Field: *field, Value: value})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Field.ID < values[j].Field.ID })
	return values, nil
}

// Close 实现 storage.Store 接口，无资源需要释放。
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store 接口。
func (s *Store) Health() error { return nil }
