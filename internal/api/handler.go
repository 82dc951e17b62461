package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"geostack_service/internal/config"
	"geostack_service/internal/core"
	"geostack_service/internal/domain/model"
)

// Runner executes one sampling run.
type Runner interface {
	Run(ctx context.Context, cfg model.SamplingConfig) (*core.RunResult, error)
}

type Handler struct {
	service Runner
	logger  *zap.Logger
}

func NewHandler(service Runner, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sample", h.Sample)
	mux.HandleFunc("/api/groups", h.Groups)
	return mux
}

// SampleResponse carries the run metadata and, when requested, the rows.
type SampleResponse struct {
	Metadata model.RunMetadata `json:"metadata"`
	Rows     []model.SampleRow `json:"rows,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Sample accepts a run configuration over the defaults and runs it.
// Pass ?rows=true to get the sampled rows back inline.
func (h *Handler) Sample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := config.Default()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "request"})
		return
	}
	// Local boundary files are a CLI feature; the server never opens paths named by callers.
	if req.AOI.GeoJSONPath != "" {
		h.writeError(w, &model.ConfigurationError{Field: "aoi.geojson", Reason: "local boundary files are not accepted over HTTP"})
		return
	}

	cfg, err := req.Build()
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Run(r.Context(), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := SampleResponse{Metadata: result.Metadata}
	if r.URL.Query().Get("rows") == "true" {
		resp.Rows = result.Rows
	}
	writeJSON(w, http.StatusOK, resp)
}

// GroupInfo lists the bands a feature group contributes.
type GroupInfo struct {
	Name  model.FeatureGroup `json:"name"`
	Bands []string           `json:"bands"`
}

// Groups lists the feature groups with their output bands for the
// default band selection.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := config.Default().Build()
	if err != nil {
		h.writeError(w, err)
		return
	}
	groups := make([]GroupInfo, 0, len(model.GroupOrder))
	for _, g := range model.GroupOrder {
		groups = append(groups, GroupInfo{Name: g, Bands: core.GroupBands(cfg, g)})
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("sampling run failed", zap.Error(err))
	} else {
		h.logger.Info("sampling run rejected", zap.String("kind", kind), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrSourceUnavailable):
		return http.StatusFailedDependency, "source_unavailable"
	case errors.Is(err, model.ErrEmptyResult):
		return http.StatusUnprocessableEntity, "empty_result"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
