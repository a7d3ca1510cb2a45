package lang

// englishStrings 英文语料表。
var englishStrings = map[string]string{
	// 通知导语
	"notify_action_new":      "The following issue has been SUBMITTED.",
	"notify_action_updated":  "The following issue has been UPDATED.",
	"notify_action_owner":    "The following issue has been ASSIGNED.",
	"notify_action_reopened": "The following issue has been REOPENED.",
	"notify_action_resolved": "The following issue has been RESOLVED.",
	"notify_action_closed":   "The following issue has been CLOSED.",
	"notify_action_feedback": "The following issue requires your FEEDBACK.",
	"notify_action_deleted":  "The following issue has been DELETED.",
	"notify_action_docnote":  "A NOTE has been added to this issue.",
	"notify_action_monitor":  "The issue is now monitored by user %s.",
	"notify_action_sponsor":  "The SPONSORSHIP of this issue has changed.",
	"notify_action_priority": "The PRIORITY of this issue has been changed.",
	"notify_action_relation": "A RELATIONSHIP of this issue has changed.",

	// 关系变更文案
	"notify_relation_related_added":         "The issue has been set as RELATED TO issue %s.",
	"notify_relation_related_deleted":       "The issue is no longer RELATED TO issue %s.",
	"notify_relation_parent_added":          "The issue has been set as PARENT OF issue %s.",
	"notify_relation_parent_deleted":        "The issue is no longer PARENT OF issue %s.",
	"notify_relation_dependant_added":       "The issue has been set as DEPENDANT ON issue %s.",
	"notify_relation_dependant_deleted":     "The issue is no longer DEPENDANT ON issue %s.",
	"notify_relation_duplicate_added":       "The issue has been set as DUPLICATE OF issue %s.",
	"notify_relation_duplicate_deleted":     "The issue is no longer DUPLICATE OF issue %s.",
	"notify_relation_has_duplicate_added":   "Issue %s has been set as DUPLICATE OF this issue.",
	"notify_relation_has_duplicate_deleted": "Issue %s is no longer DUPLICATE OF this issue.",
	"notify_relation_child_resolved":        "The RELATED issue %s has been RESOLVED.",
	"notify_relation_child_closed":          "The RELATED issue %s has been CLOSED.",

	// 提醒
	"reminder_sent_to":  "%s sent you this reminder about issue %s:",
	"reminder_sent_by":  "Reminder sent to: %s",
	"reminder_contact":  "You can contact the sender at %s.",

	// 关系类型名
	"relation_1": "related to",
	"relation_2": "parent of",
	"relation_3": "dependant on",
	"relation_4": "duplicate of",
	"relation_5": "has duplicate",

	// 字段标签
	"label_project":        "Project",
	"label_bug_id":         "Issue ID",
	"label_category":       "Category",
	"label_reported_by":    "Reported By",
	"label_assigned_to":    "Assigned To",
	"label_severity":       "Severity",
	"label_priority":       "Priority",
	"label_status":         "Status",
	"label_resolution":     "Resolution",
	"label_view_state":     "View Status",
	"label_target_version": "Target Version",
	"label_date_submitted": "Date Submitted",
	"label_last_modified":  "Last Modified",
	"label_summary":        "Summary",
	"label_description":    "Description",
	"label_sponsor_total":  "Sponsorship Total",
	"label_time_tracking":  "Time Tracking",
	"label_notes":          "Notes",
	"label_history":        "Issue History",
	"label_history_field":  "Field",
	"label_history_change": "Change",
	"label_edited_on":      "edited on: %s",

	// 枚举名
	"status_10": "new",
	"status_20": "feedback",
	"status_30": "acknowledged",
	"status_40": "confirmed",
	"status_50": "assigned",
	"status_80": "resolved",
	"status_90": "closed",

	"severity_10": "feature",
	"severity_20": "trivial",
	"severity_30": "text",
	"severity_40": "tweak",
	"severity_50": "minor",
	"severity_60": "major",
	"severity_70": "crash",
	"severity_80": "block",

	"priority_10": "none",
	"priority_20": "low",
	"priority_30": "normal",
	"priority_40": "high",
	"priority_50": "urgent",
	"priority_60": "immediate",

	"resolution_10": "open",
	"resolution_20": "fixed",
	"resolution_30": "reopened",
	"resolution_40": "unable to reproduce",
	"resolution_50": "not fixable",
	"resolution_60": "duplicate",
	"resolution_70": "no change required",
	"resolution_80": "suspended",
	"resolution_90": "won't fix",

	"view_state_10": "public",
	"view_state_50": "private",
}
