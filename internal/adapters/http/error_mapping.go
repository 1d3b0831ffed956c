package httpadapter

import (
	"net/http"

	"github.com/notelib/score-intake/internal/core/domain"
)

// mapError turns domain failures into API responses. Transition guard
// violations answer 409 with the session's current status so clients can
// reconcile without a second read.
func mapError(err error) (int, map[string]any) {
	if ite, ok := domain.IsInvalidTransition(err); ok {
		return http.StatusConflict, map[string]any{
			"error":          ite.Error(),
			"current_status": string(ite.Current),
		}
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, map[string]any{"error": err.Error()}
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, map[string]any{"error": err.Error()}
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, map[string]any{"error": err.Error()}
	default:
		return http.StatusInternalServerError, map[string]any{"error": err.Error()}
	}
}
