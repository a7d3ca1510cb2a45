package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// SaveBug 保存缺陷。
func (s *Store) SaveBug(bug *domain.Bug) error {
	now := time.Now().UTC()
	if bug.DateSubmitted.IsZero() {
		bug.DateSubmitted = now
	}
	if bug.LastUpdated.IsZero() {
		bug.LastUpdated = bug.DateSubmitted
	}
	return s.gormDB.Save(bug).Error
}

// GetBug 根据 ID 获取缺陷。
func (s *Store) GetBug(id int) (*domain.Bug, error) {
	var bug domain.Bug
	if err := s.gormDB.First(&bug, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrBugNotFound
		}
		return nil, err
	}
	return &bug, nil
}

// UpdateBug 更新缺陷字段。
func (s *Store) UpdateBug(bug *domain.Bug) error {
	result := s.gormDB.Model(&domain.Bug{}).Where("id = ?", bug.ID).Updates(bug)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrBugNotFound
	}
	return nil
}

// TouchBug 只刷新缺陷的 last_updated 时间戳。
func (s *Store) TouchBug(id int, when time.Time) error {
	result := s.gormDB.Model(&domain.Bug{}).Where("id = ?", id).Update("last_updated", when)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrBugNotFound
	}
	return nil
}

// DeleteBug 删除缺陷及其关联数据。
func (s *Store) DeleteBug(id int) error {
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bug_id = ?", id).Delete(&domain.BugMonitor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bug_id = ?", id).Delete(&domain.HistoryEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bug_id = ?", id).Delete(&domain.CustomFieldValue{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Bug{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrBugNotFound
		}
		return nil
	})
}

// SaveUser 保存用户。
func (s *Store) SaveUser(user *domain.User) error {
	return s.gormDB.Save(user).Error
}

// GetUser 根据 ID 获取用户。
func (s *Store) GetUser(id int) (*domain.User, error) {
	var user domain.User
	if err := s.gormDB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetPreference 取用户偏好，项目级优先，其次全局行，最后默认值。
func (s *Store) GetPreference(userID, projectID int) (*domain.UserPreference, error) {
	var pref domain.UserPreference
	err := s.gormDB.Where("user_id = ? AND project_id = ?", userID, projectID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = s.gormDB.Where("user_id = ? AND project_id = 0", userID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return domain.DefaultPreference(userID), nil
}

// SavePreference 保存用户偏好。
func (s *Store) SavePreference(pref *domain.UserPreference) error {
	return s.gormDB.Save(pref).Error
}

// SaveProject 保存项目。
func (s *Store) SaveProject(project *domain.Project) error {
	return s.gormDB.Save(project).Error
}

// GetProject 根据 ID 获取项目。
func (s *Store) GetProject(id int) (*domain.Project, error) {
	var project domain.Project
	if err := s.gormDB.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// SetProjectAccess 设置用户在项目中的角色级别。
func (s *Store) SetProjectAccess(projectID, userID int, level domain.AccessLevel) error {
	pu := domain.ProjectUser{ProjectID: projectID, UserID: userID, AccessLevel: level}
	return s.gormDB.Save(&pu).Error
}

// ProjectAccessLevel 取用户在项目中的有效级别。
func (s *Store) ProjectAccessLevel(userID, projectID int) (domain.AccessLevel, error) {
	var pu domain.ProjectUser
	err := s.gormDB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&pu).Error
	if err == nil {
		return pu.AccessLevel, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AccessAnybody, err
	}
	user, err := s.GetUser(userID)
	if err != nil {
		return domain.AccessAnybody, err
	}
	return user.AccessLevel, nil
}

// MembersWithRoleAtLeast 列出项目中级别不低于 min 的成员。
//
// 有项目级行的用户按项目级别参与；其余启用用户按全局级别参与。
func (s *Store) MembersWithRoleAtLeast(projectID int, min domain.AccessLevel) ([]domain.ProjectUser, error) {
	var explicit []domain.ProjectUser
	if err := s.gormDB.Where("project_id = ? AND access_level >= ?", projectID, min).
		Order("user_id").Find(&explicit).Error; err != nil {
		return nil, err
	}

	var implicit []domain.User
	sub := s.gormDB.Model(&domain.ProjectUser{}).Select("user_id").Where("project_id = ?", projectID)
	if err := s.gormDB.Where("enabled = ? AND access_level >= ? AND id NOT IN (?)", true, min, sub).
		Order("id").Find(&implicit).Error; err != nil {
		return nil, err
	}

	members := explicit
	for _, user := range implicit {
		members = append(members, domain.ProjectUser{
			ProjectID:   projectID,
			UserID:      user.ID,
			AccessLevel: user.AccessLevel,
		})
	}
	return members, nil
}

// AddMonitor 添加缺陷监视关系。
func (s *Store) AddMonitor(bugID, userID int) error {
	m := domain.BugMonitor{BugID: bugID, UserID: userID}
	return s.gormDB.Save(&m).Error
}

// RemoveMonitor 移除缺陷监视关系。
func (s *Store) RemoveMonitor(bugID, userID int) error {
	return s.gormDB.Where("bug_id = ? AND user_id = ?", bugID, userID).Delete(&domain.BugMonitor{}).Error
}

// MonitorsForBug 列出监视缺陷的去重用户 ID。
func (s *Store) MonitorsForBug(bugID int) ([]int, error) {
	var ids []int
	err := s.gormDB.Model(&domain.BugMonitor{}).Distinct("user_id").
		Where("bug_id = ?", bugID).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}

// SaveRelationship 保存缺陷关系。
func (s *Store) SaveRelationship(rel *domain.Relationship) error {
	var count int64
	if err := s.gormDB.Model(&domain.Relationship{}).
		Where("source_bug_id = ? AND dest_bug_id = ?", rel.SourceBugID, rel.DestBugID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrRelationshipExists
	}
	return s.gormDB.Create(rel).Error
}

// GetRelationship 按 ID 取缺陷关系。
func (s *Store) GetRelationship(id int) (*domain.Relationship, error) {
	var rel domain.Relationship
	if err := s.gormDB.First(&rel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrRelationshipNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// DeleteRelationship 删除缺陷关系。
func (s *Store) DeleteRelationship(id int) error {
	return s.gormDB.Delete(&domain.Relationship{}, id).Error
}

// RelationshipsForBug 列出以给定缺陷为源的关系。
func (s *Store) RelationshipsForBug(bugID int) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	err := s.gormDB.Where("source_bug_id = ?", bugID).Order("id").Find(&rels).Error
	return rels, err
}

// RelationshipsToBug 列出以给定缺陷为目标的关系。
func (s *Store) RelationshipsToBug(destBugID int) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	err := s.gormDB.Where("dest_bug_id = ?", destBugID).Order("id").Find(&rels).Error
	return rels, err
}

// RecordHistory 追加一条变更历史。
func (s *Store) RecordHistory(event *domain.HistoryEvent) error {
	if event.Date.IsZero() {
		event.Date = time.Now().UTC()
	}
	return s.gormDB.Create(event).Error
}

// HistoryForBug 按时间顺序返回缺陷的变更历史。
func (s *Store) HistoryForBug(bugID int) ([]domain.HistoryEvent, error) {
	var events []domain.HistoryEvent
	err := s.gormDB.Where("bug_id = ?", bugID).Order("date, id").Find(&events).Error
	return events, err
}

// SaveSponsorship 保存赞助记录。
func (s *Store) SaveSponsorship(sp *domain.Sponsorship) error {
	if sp.DateSubmitted.IsZero() {
		sp.DateSubmitted = time.Now().UTC()
	}
	return s.gormDB.Create(sp).Error
}

// SponsorshipsForBug 返回缺陷的全部赞助记录。
func (s *Store) SponsorshipsForBug(bugID int) ([]domain.Sponsorship, error) {
	var sps []domain.Sponsorship
	err := s.gormDB.Where("bug_id = ?", bugID).Order("date_submitted, id").Find(&sps).Error
	return sps, err
}

// SaveCustomField 保存自定义字段定义。
func (s *Store) SaveCustomField(field *domain.CustomField) error {
	return s.gormDB.Save(field).Error
}

// SetCustomFieldValue 设置缺陷上自定义字段的取值。
func (s *Store) SetCustomFieldValue(fieldID, bugID int, value string) error {
	fv := domain.CustomFieldValue{FieldID: fieldID, BugID: bugID, Value: value}
	return s.gormDB.Save(&fv).Error
}

// FieldsForBug 返回缺陷上有值的自定义字段及取值。
func (s *Store) FieldsForBug(bugID int) ([]storage.BugFieldValue, error) {
	var rows []struct {
		domain.CustomField
		Value string
	}
	err := s.gormDB.Model(&domain.CustomFieldValue{}).
		Select("custom_fields.*, custom_field_values.value").
		Joins("JOIN custom_fields ON custom_fields.id = custom_field_values.field_id").
		Where("custom_field_values.bug_id = ?", bugID).
		Order("custom_fields.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	values := make([]storage.BugFieldValue, len(rows))
	for i, row := range rows {
		values[i] = storage.BugFieldValue{Field: row.CustomField, Value: row.Value}
	}
	return values, nil
}
