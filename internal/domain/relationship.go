package domain

import "errors"

// ErrRelationshipNotFound 未知关系类型错误，关系类通知按致命错误处理。
var ErrRelationshipNotFound = errors.New("relationship type not found")

// RelationType 缺陷之间的关系类型。
type RelationType int

const (
	RelationRelatedTo    RelationType = 1
	RelationParentOf     RelationType = 2
	RelationDependantOn  RelationType = 3
	RelationDuplicateOf  RelationType = 4
	RelationHasDuplicate RelationType = 5
)

// relationMessages 关系类型到通知文案键的映射。
var relationMessages = map[RelationType]struct{ added, deleted string }{
	RelationRelatedTo:    {"notify_relation_related_added", "notify_relation_related_deleted"},
	RelationParentOf:     {"notify_relation_parent_added", "notify_relation_parent_deleted"},
	RelationDependantOn:  {"notify_relation_dependant_added", "notify_relation_dependant_deleted"},
	RelationDuplicateOf:  {"notify_relation_duplicate_added", "notify_relation_duplicate_deleted"},
	RelationHasDuplicate: {"notify_relation_has_duplicate_added", "notify_relation_has_duplicate_deleted"},
}

// MessageKeys 返回该关系类型的新增/删除通知文案键。
func (t RelationType) MessageKeys() (added, deleted string, err error) {
	m, ok := relationMessages[t]
	if !ok {
		return "", "", ErrRelationshipNotFound
	}
	return m.added, m.deleted, nil
}

// Valid 判断关系类型是否已注册。
func (t RelationType) Valid() bool {
	_, ok := relationMessages[t]
	return ok
}

// Relationship 表示两个缺陷之间的有向关系。
type Relationship struct {
	ID          int          `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceBugID int          `json:"sourceBugId" gorm:"index;not null"`
	DestBugID   int          `json:"destBugId" gorm:"index;not null"`
	Type        RelationType `json:"type" gorm:"not null"`
}
