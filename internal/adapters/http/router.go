package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/core/ports"
	"github.com/kirillkom/product-classifier/internal/observability/metrics"
)

const (
	paginatorHeader = "X-Paginator"
	maxBodyBytes    = 1 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Services struct {
	Predictor ports.Predictor
	Registry  ports.ModelRegistry
	Training  ports.TrainingRequester
	TextStats ports.TextStatsService
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(cfg config.Config, services Services, opts ...Option) *Router {
	rt := &Router{cfg: cfg, services: services, logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/predictions", rt.predict)
	api.HandleFunc("GET /v1/models", rt.listModels)
	api.HandleFunc("POST /v1/models", rt.createModel)
	api.HandleFunc("POST /v1/models/train", rt.trainModel)
	api.HandleFunc("GET /v1/models/active", rt.getActiveModel)
	api.HandleFunc("GET /v1/models/{id}", rt.getModel)
	api.HandleFunc("PUT /v1/models/{id}", rt.updateModel)
	api.HandleFunc("PATCH /v1/models/{id}", rt.patchModel)
	api.HandleFunc("DELETE /v1/models/{id}", rt.deleteModel)
	api.HandleFunc("POST /v1/models/{id}/set-active", rt.setActiveModel)
	api.HandleFunc("GET /v1/models/{id}/report.xlsx", rt.modelReport)
	api.HandleFunc("GET /v1/stats/text/{type}", rt.textStats)

	limited := backpressureMiddleware(api, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	limited = rateLimitMiddleware(limited, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/", limited)

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Designation string `json:"designation"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.recordPrediction(err, start)
		rt.writeError(w, r, err)
		return
	}

	answer, err := rt.services.Predictor.Predict(r.Context(), req.Designation, req.Description)
	rt.recordPrediction(err, start)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordPrediction(err error, start time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordPrediction(predictionOutcome(err), time.Since(start))
	}
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	take, err := optionalInt(query.Get("take"), "take")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	skip, err := optionalInt(query.Get("skip"), "skip")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	page, err := rt.services.Registry.List(r.Context(), domain.ListQuery{
		Take:   take,
		Skip:   skip,
		Search: query.Get("search"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	paginator, err := json.Marshal(struct {
		TotalRecords int64
		TotalPages   int
	}{TotalRecords: page.TotalRecords, TotalPages: page.TotalPages})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set(paginatorHeader, string(paginator))
	w.Header().Set("Access-Control-Expose-Headers", paginatorHeader)
	writeJSON(w, http.StatusOK, page.Items)
}

func (rt *Router) createModel(w http.ResponseWriter, r *http.Request) {
	var input domain.NewModelInput
	if err := decodeJSON(w, r, &input); err != nil {
		rt.writeError(w, r, err)
		return
	}
	model, err := rt.services.Registry.Create(r.Context(), input)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/models/"+model.ID)
	writeJSON(w, http.StatusCreated, model)
}

func (rt *Router) trainModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	model, err := rt.services.Training.Request(r.Context(), req.Name, req.Description)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/models/"+model.ID)
	writeJSON(w, http.StatusAccepted, model)
}

// getActiveModel reports a missing or incomplete active model as not found.
func (rt *Router) getActiveModel(w http.ResponseWriter, r *http.Request) {
	model, err := rt.services.Registry.GetActive(r.Context())
	if err != nil {
		if domain.IsKind(err, domain.ErrNoActiveModel) || domain.IsKind(err, domain.ErrModelIncomplete) {
			rt.writeErrorStatus(w, r, http.StatusNotFound, err)
			return
		}
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (rt *Router) getModel(w http.ResponseWriter, r *http.Request) {
	model, err := rt.services.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (rt *Router) updateModel(w http.ResponseWriter, r *http.Request) {
	var model domain.ClassificationModel
	if err := decodeJSON(w, r, &model); err != nil {
		rt.writeError(w, r, err)
		return
	}
	updated, err := rt.services.Registry.Update(r.Context(), r.PathValue("id"), model)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) patchModel(w http.ResponseWriter, r *http.Request) {
	var patch domain.ModelPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		rt.writeError(w, r, err)
		return
	}
	updated, err := rt.services.Registry.Patch(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) setActiveModel(w http.ResponseWriter, r *http.Request) {
	model, err := rt.services.Registry.SetActive(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (rt *Router) modelReport(w http.ResponseWriter, r *http.Request) {
	model, err := rt.services.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := writeEvaluationWorkbook(&buf, model); err != nil {
		if domain.IsKind(err, domain.ErrModelIncomplete) {
			rt.writeErrorStatus(w, r, http.StatusConflict, err)
			return
		}
		rt.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="model-%s-report.xlsx"`, model.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) textStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	topWords, err := optionalInt(query.Get("nbTopWords"), "nbTopWords")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	longestWords, err := optionalInt(query.Get("nbLongestWords"), "nbLongestWords")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	report, err := rt.services.TextStats.Compute(r.Context(), r.PathValue("type"), topWords, longestWords)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json body"))
	}
	return nil
}

func optionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be an integer", name))
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
