package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/loopwise/internal/domain/model"
)

// maxRequestBytes bounds the size of a submitted analysis body.
const maxRequestBytes = 8 << 20

// AnalysesHandler handles analysis submission and lookup.
type AnalysesHandler struct {
	deps Dependencies
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies) *AnalysesHandler {
	return &AnalysesHandler{deps: deps}
}

// HandleSubmit handles POST /analyses requests.
func (h *AnalysesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_analysis"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, nil)
		return
	}

	var req model.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.Submit(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, model.ErrBackpressure), errors.Is(err, model.ErrNotStarted):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, codeBackpressure, WrapKind(op, ErrBackpressure, err))
		return
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, WrapKind(op, ErrInternal, err))
		return
	}

	w.Header().Set("Location", "/analyses/"+sub.JobID)
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{ID: sub.JobID, Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{ID: sub.JobID, Status: string(model.StatusQueued)})
}

// HandleGet handles GET /analyses/{id} requests.
func (h *AnalysesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, nil)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, codeBadRequest, NewKind(op, ErrBadRequest))
		return
	}

	job, err := h.deps.Job(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
