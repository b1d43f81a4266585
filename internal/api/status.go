package api

import (
	"errors"
	"net/http"

	"github.com/sanosuguru/go-event-admission/internal/domain/category"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/request"
	"github.com/sanosuguru/go-event-admission/internal/domain/user"
)

// HTTPStatus はドメインエラーをHTTPステータスコードに変換する
// 未知のエラーは500として扱う
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, request.ErrRequestNotFound),
		errors.Is(err, category.ErrCategoryNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound

	// 競合。再試行または状態確認で解消しうる
	case errors.Is(err, event.ErrAlreadyPublished),
		errors.Is(err, event.ErrAlreadyCanceled),
		errors.Is(err, request.ErrDuplicateRequest),
		errors.Is(err, request.ErrRequestAlreadyConfirmed),
		errors.Is(err, request.ErrRequestAlreadyCanceled),
		errors.Is(err, request.ErrParticipantLimit),
		errors.Is(err, request.ErrEventBusy):
		return http.StatusConflict

	case errors.Is(err, event.ErrTitleRequired),
		errors.Is(err, event.ErrAnnotationRequired),
		errors.Is(err, event.ErrInvalidParticipantLimit),
		errors.Is(err, event.ErrInvalidEventDate),
		errors.Is(err, event.ErrNotPublished),
		errors.Is(err, event.ErrInvalidDateRange),
		errors.Is(err, request.ErrSelfRegistration),
		errors.Is(err, request.ErrInvalidDecision):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
