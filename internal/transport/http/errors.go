package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/service"
	"bugtrack/backend/internal/storage"
)

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidID      = "无效的资源编号"
	MsgInternalError  = "服务器内部错误，请稍后重试"
)

// 业务错误到中文消息的映射
var errorMessages = map[error]string{
	storage.ErrBugNotFound:          "缺陷不存在",
	storage.ErrNoteNotFound:         "注释不存在",
	storage.ErrUserNotFound:         "用户不存在",
	storage.ErrProjectNotFound:      "项目不存在",
	storage.ErrRelationshipNotFound: "缺陷关系不存在",
	storage.ErrRelationshipExists:   "两缺陷间已存在关系",
	storage.ErrEmailNotFound:        "队列邮件不存在",
	domain.ErrRelationshipNotFound:  "未知的关系类型",

	service.ErrBlankNoteText:        "注释正文不能为空",
	service.ErrBlankSummary:         "缺陷摘要不能为空",
	service.ErrTimeTrackingDisabled: "工时功能未启用",
	service.ErrViewStateDenied:      "权限不足以设置私有可见性",
	service.ErrSelfRelationship:     "缺陷不能与自身建立关系",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for key, msg := range errorMessages {
		if errors.Is(err, key) {
			return msg
		}
	}
	return err.Error()
}

// writeServiceError 把业务错误映射为对应的 HTTP 响应。
func writeServiceError(c *gin.Context, err error) {
	msg := GetErrorMessage(err)
	switch {
	case errors.Is(err, storage.ErrBugNotFound),
		errors.Is(err, storage.ErrNoteNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, storage.ErrRelationshipNotFound),
		errors.Is(err, storage.ErrEmailNotFound):
		NotFound(c, msg)
	case errors.Is(err, storage.ErrRelationshipExists):
		Conflict(c, msg)
	case errors.Is(err, service.ErrViewStateDenied):
		Forbidden(c, msg)
	case errors.Is(err, service.ErrBlankNoteText),
		errors.Is(err, service.ErrBlankSummary),
		errors.Is(err, service.ErrTimeTrackingDisabled),
		errors.Is(err, service.ErrSelfRelationship),
		errors.Is(err, domain.ErrRelationshipNotFound):
		BadRequest(c, msg)
	default:
		InternalError(c, MsgInternalError)
	}
}
