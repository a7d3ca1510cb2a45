package domain

// NotifyType 通知类型标签，用于选择偏好字段与默认收件规则。
type NotifyType string

const (
	NotifyNew      NotifyType = "new"
	NotifyFeedback NotifyType = "feedback"
	NotifyReopened NotifyType = "reopened"
	NotifyResolved NotifyType = "resolved"
	NotifyClosed   NotifyType = "closed"
	NotifyNote     NotifyType = "docnote"
	NotifyOwner    NotifyType = "owner"
	NotifyDeleted  NotifyType = "deleted"
	NotifyUpdated  NotifyType = "updated"
	NotifySponsor  NotifyType = "sponsor"
	NotifyRelation NotifyType = "relation"
	NotifyMonitor  NotifyType = "monitor"
	NotifyPriority NotifyType = "priority"
)

// PreferenceField 把通知类型映射到用户偏好字段。
//
// 内建动作之外的任何标签（包括状态名和未识别的类型）都落到
// email_on_status：无专属偏好的类型按普通状态变更处理。
func (t NotifyType) PreferenceField() PreferenceField {
	switch t {
	case NotifyNew:
		return PrefEmailOnNew
	case NotifyFeedback:
		return PrefEmailOnFeedback
	case NotifyReopened:
		return PrefEmailOnReopened
	case NotifyResolved:
		return PrefEmailOnResolved
	case NotifyClosed:
		return PrefEmailOnClosed
	case NotifyNote:
		return PrefEmailOnNote
	case NotifyOwner:
		return PrefEmailOnAssigned
	default:
		return PrefEmailOnStatus
	}
}
