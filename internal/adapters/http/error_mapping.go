package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrModelNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrActivationRejected):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrNoActiveModel),
		domain.IsKind(err, domain.ErrModelIncomplete),
		domain.IsKind(err, domain.ErrArtifactUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// predictionOutcome is the metrics label for a prediction result.
func predictionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrNoActiveModel):
		return "no_active_model"
	case domain.IsKind(err, domain.ErrModelIncomplete), domain.IsKind(err, domain.ErrArtifactUnavailable):
		return "model_unavailable"
	default:
		return "error"
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rt.writeErrorStatus(w, r, mapErrorToHTTPStatus(err), err)
}

func (rt *Router) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	message := err.Error()
	if status >= http.StatusInternalServerError && !isDomainError(err) {
		rt.logger.Error("http_internal_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		domain.ErrNoActiveModel,
		domain.ErrModelIncomplete,
		domain.ErrArtifactUnavailable,
		domain.ErrTemporary,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
