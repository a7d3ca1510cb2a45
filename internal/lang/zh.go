package lang

// chineseStrings 中文语料表，缺键时回退英文。
var chineseStrings = map[string]string{
	"notify_action_new":      "以下缺陷已提交。",
	"notify_action_updated":  "以下缺陷已更新。",
	"notify_action_owner":    "以下缺陷已指派。",
	"notify_action_reopened": "以下缺陷已重新打开。",
	"notify_action_resolved": "以下缺陷已解决。",
	"notify_action_closed":   "以下缺陷已关闭。",
	"notify_action_feedback": "以下缺陷需要您的反馈。",
	"notify_action_deleted":  "以下缺陷已删除。",
	"notify_action_docnote":  "该缺陷新增了一条注释。",
	"notify_action_monitor":  "用户 %s 开始监视该缺陷。",
	"notify_action_sponsor":  "该缺陷的赞助状态发生了变化。",
	"notify_action_priority": "该缺陷的优先级已调整。",
	"notify_action_relation": "该缺陷的关联关系发生了变化。",

	"notify_relation_related_added":         "该缺陷已与缺陷 %s 建立关联。",
	"notify_relation_related_deleted":       "该缺陷与缺陷 %s 的关联已解除。",
	"notify_relation_parent_added":          "该缺陷已设为缺陷 %s 的父缺陷。",
	"notify_relation_parent_deleted":        "该缺陷不再是缺陷 %s 的父缺陷。",
	"notify_relation_dependant_added":       "该缺陷已设为依赖缺陷 %s。",
	"notify_relation_dependant_deleted":     "该缺陷不再依赖缺陷 %s。",
	"notify_relation_duplicate_added":       "该缺陷已标记为缺陷 %s 的重复项。",
	"notify_relation_duplicate_deleted":     "该缺陷不再是缺陷 %s 的重复项。",
	"notify_relation_has_duplicate_added":   "缺陷 %s 已标记为该缺陷的重复项。",
	"notify_relation_has_duplicate_deleted": "缺陷 %s 不再是该缺陷的重复项。",
	"notify_relation_child_resolved":        "关联缺陷 %s 已解决。",
	"notify_relation_child_closed":          "关联缺陷 %s 已关闭。",

	"reminder_sent_to": "%s 就缺陷 %s 给您发送了提醒：",
	"reminder_sent_by": "提醒已发送给：%s",
	"reminder_contact": "您可以通过 %s 联系发件人。",

	"relation_1": "相关",
	"relation_2": "父级",
	"relation_3": "依赖",
	"relation_4": "重复",
	"relation_5": "被重复",

	"label_project":        "项目",
	"label_bug_id":         "缺陷编号",
	"label_category":       "分类",
	"label_reported_by":    "报告人",
	"label_assigned_to":    "处理人",
	"label_severity":       "严重程度",
	"label_priority":       "优先级",
	"label_status":         "状态",
	"label_resolution":     "处理结论",
	"label_view_state":     "可见性",
	"label_target_version": "目标版本",
	"label_date_submitted": "提交时间",
	"label_last_modified":  "最后更新",
	"label_summary":        "摘要",
	"label_description":    "描述",
	"label_sponsor_total":  "赞助总额",
	"label_time_tracking":  "工时",
	"label_notes":          "注释",
	"label_history":        "变更历史",
	"label_history_field":  "字段",
	"label_history_change": "变更",
	"label_edited_on":      "编辑于：%s",

	"status_10": "新建",
	"status_20": "反馈",
	"status_30": "已确认",
	"status_40": "已核实",
	"status_50": "已指派",
	"status_80": "已解决",
	"status_90": "已关闭",

	"severity_10": "新功能",
	"severity_20": "轻微",
	"severity_30": "文字",
	"severity_40": "微调",
	"severity_50": "次要",
	"severity_60": "主要",
	"severity_70": "崩溃",
	"severity_80": "阻塞",

	"priority_10": "无",
	"priority_20": "低",
	"priority_30": "普通",
	"priority_40": "高",
	"priority_50": "紧急",
	"priority_60": "立刻",

	"resolution_10": "未处理",
	"resolution_20": "已修复",
	"resolution_30": "重新打开",
	"resolution_40": "无法重现",
	"resolution_50": "无法修复",
	"resolution_60": "重复",
	"resolution_70": "无需修改",
	"resolution_80": "搁置",
	"resolution_90": "不予修复",

	"view_state_10": "公开",
	"view_state_50": "私有",
}
