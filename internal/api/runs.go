package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/Prioritizer/internal/broker"
	"github.com/MikeSquared-Agency/Prioritizer/internal/config"
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
	"github.com/MikeSquared-Agency/Prioritizer/internal/ranking"
	"github.com/MikeSquared-Agency/Prioritizer/internal/store"
	"github.com/MikeSquared-Agency/Prioritizer/internal/workbook"
)

const maxUploadBytes = 32 << 20

type RunsHandler struct {
	broker *broker.Broker
	store  store.Store
	run    config.RunConfig
	logger *slog.Logger
}

func NewRunsHandler(b *broker.Broker, s store.Store, run config.RunConfig, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{broker: b, store: s, run: run, logger: logger}
}

// CreateRunRequest carries the input tables and optional parameter
// overrides. Params left out keep the server's configured values.
type CreateRunRequest struct {
	Input  pipeline.Input  `json:"input"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RunResponse is a finished result plus anything that went wrong after it
// was computed, such as a failed sink.
type RunResponse struct {
	*pipeline.Result
	Warnings []string `json:"warnings,omitempty"`
}

func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	params, err := h.broker.Params().Overlay(req.Params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Info("run requested", "client", ClientID(r.Context()), "name", req.Input.Name)
	res, err := h.broker.Run(r.Context(), broker.Job{Input: req.Input, Params: &params})
	h.respond(w, res, nil, err)
}

// Upload runs a standardized input workbook sent as the multipart field
// "workbook". Run parameters found in the workbook override the configured
// ones for this run only.
func (h *RunsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("workbook")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'workbook' required"})
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "not a readable xlsx workbook"})
		return
	}
	defer f.Close()

	wb, err := workbook.Parse(f)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	rc := h.run
	skipped, err := rc.Apply(wb.Parameters)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	params := rc.Params()
	if wb.RandomIndex != nil {
		params.AHP.RandomIndex = wb.RandomIndex
	}
	if wb.Input.Name == "" {
		wb.Input.Name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	var warnings []string
	for _, k := range skipped {
		warnings = append(warnings, fmt.Sprintf("workbook parameter %q ignored", k))
	}
	h.logger.Info("workbook run requested", "client", ClientID(r.Context()), "file", header.Filename)
	res, err := h.broker.Run(r.Context(), broker.Job{Input: wb.Input, Params: &params})
	h.respond(w, res, warnings, err)
}

func (h *RunsHandler) respond(w http.ResponseWriter, res *pipeline.Result, warnings []string, err error) {
	if res == nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	writeJSON(w, http.StatusCreated, RunResponse{Result: res, Warnings: warnings})
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store disabled"})
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{Name: q.Get("name")}
	if s := q.Get("status"); s != "" {
		status := store.RunStatus(s)
		filter.Status = &status
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + key})
				return
			}
			*dst = n
		}
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// View returns one projection of a stored result.
func (h *RunsHandler) View(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	res := run.Result
	var v any
	switch chi.URLParam(r, "view") {
	case ranking.ViewLong:
		v = res.Long
	case ranking.ViewPivoted:
		v = res.Pivoted
	case ranking.ViewSummedAndRanked:
		v = res.SummedAndRanked
	case ranking.ViewFrontier:
		v = ranking.Frontier(res.Pivoted)
	case ranking.ViewBins:
		rk, err := ranking.NewRanker(res.Params.Ranking)
		if err == nil {
			v, err = rk.BinRanges(res.SummedAndRanked)
		}
		if err != nil {
			writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
			return
		}
	case workbook.SheetWeights:
		v = res.Weights
	case workbook.SheetWeightsOverall:
		v = res.OverallWeights
	case workbook.SheetConsistency:
		v = res.Consistency
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown view"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Workbook streams a stored result as an xlsx file.
func (h *RunsHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	f, err := workbook.Build(run.Result)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.ID.String()+"_"+workbook.ResultFile))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		h.logger.Error("failed to stream workbook", "run_id", run.ID, "error", err)
	}
}

func (h *RunsHandler) load(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store disabled"})
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return nil, false
	}
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil, false
	}
	return run, true
}

func (h *RunsHandler) loadResult(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	run, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	if run.Result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run has no result", "status": string(run.Status)})
		return nil, false
	}
	return run, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrData), errors.Is(err, model.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
