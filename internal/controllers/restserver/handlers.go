package restserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/storage/cachestore"
	"github.com/chrissnell/rainseason/internal/types"
	"github.com/chrissnell/rainseason/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		log.Errorf("error writing response for %s: %v", req.URL.Path, err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		log.Errorf("error writing error response for %s: %v", req.URL.Path, err)
	}
}

// loadPixel fetches the latest result for the {pixel} route variable and
// writes the error response itself when there is none
func (h *Handlers) loadPixel(w http.ResponseWriter, req *http.Request) (types.PixelResult, bool) {
	label := mux.Vars(req)["pixel"]
	r, ok, err := cachestore.Latest(req.Context(), h.controller.Store, label)
	if err != nil {
		log.Errorf("error loading pixel %s: %v", label, err)
		h.fail(w, req, http.StatusInternalServerError, "error loading pixel")
		return types.PixelResult{}, false
	}
	if !ok {
		h.fail(w, req, http.StatusNotFound, fmt.Sprintf("pixel %s not found", label))
		return types.PixelResult{}, false
	}
	return r, true
}

// GetPixels lists the stored pixels. ?status= filters on the pixel status
// and ?limit= caps the number returned.
func (h *Handlers) GetPixels(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	status := types.Status(q.Get("status"))

	limit := 0
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			h.fail(w, req, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	labels, err := h.controller.Store.Labels(req.Context(), constants.StagePixel)
	if err != nil {
		log.Errorf("error listing pixels: %v", err)
		h.fail(w, req, http.StatusInternalServerError, "error listing pixels")
		return
	}

	pixels := []PixelSummary{}
	for _, label := range labels {
		if limit > 0 && len(pixels) >= limit {
			break
		}
		r, ok, err := cachestore.Latest(req.Context(), h.controller.Store, label)
		if err != nil {
			log.Warnf("skipping unreadable pixel %s: %v", label, err)
			continue
		}
		if !ok || (status != "" && r.Status != status) {
			continue
		}
		pixels = append(pixels, transformPixelSummary(r))
	}

	h.write(w, req, pixels)
}

// GetPixel returns the complete latest result of one pixel
func (h *Handlers) GetPixel(w http.ResponseWriter, req *http.Request) {
	r, ok := h.loadPixel(w, req)
	if !ok {
		return
	}
	h.write(w, req, r)
}

// GetPixelAnnual returns one pixel's per-year records
func (h *Handlers) GetPixelAnnual(w http.ResponseWriter, req *http.Request) {
	r, ok := h.loadPixel(w, req)
	if !ok {
		return
	}
	h.write(w, req, transformAnnual(r))
}

// GetCacheStats reports the size of every cache stage
func (h *Handlers) GetCacheStats(w http.ResponseWriter, req *http.Request) {
	stats, err := h.controller.Store.Stats(req.Context())
	if err != nil {
		log.Errorf("error reading cache stats: %v", err)
		h.fail(w, req, http.StatusInternalServerError, "error reading cache stats")
		return
	}
	h.write(w, req, CacheStatsResponse{Stages: stats})
}

// GetHealth reports whether the result store answers
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	labels, err := h.controller.Store.Labels(req.Context(), constants.StagePixel)
	if err != nil {
		w.Header().Set("Retry-After", "30")
		if err := h.formatter.WriteStatus(w, req, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"}); err != nil {
			log.Errorf("error writing health response: %v", err)
		}
		return
	}
	h.write(w, req, HealthResponse{Status: "ok", Pixels: len(labels), Database: h.controller.DBEnabled})
}

// GetRuns summarises the runs stored in TimescaleDB
func (h *Handlers) GetRuns(w http.ResponseWriter, req *http.Request) {
	if !h.controller.DBEnabled {
		h.fail(w, req, http.StatusNotFound, "database not enabled")
		return
	}

	var runs []RunSummary
	err := h.controller.DB.WithContext(req.Context()).
		Table("season_run_summary").
		Order("finished DESC").
		Find(&runs).Error
	if err != nil {
		log.Errorf("error querying run summary: %v", err)
		h.fail(w, req, http.StatusInternalServerError, "error querying runs")
		return
	}
	if runs == nil {
		runs = []RunSummary{}
	}
	h.write(w, req, runs)
}
