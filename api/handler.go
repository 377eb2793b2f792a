// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/db"
	"github.com/iexcalibur/invoice-extractor/internal/export"
	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/pipeline"
	"github.com/iexcalibur/invoice-extractor/internal/storage"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

const (
	MaxUploadSize = 50 * 1024 * 1024 // 50MB, multi-page PDFs included
	Version       = "1.0.0"
)

// Handler handles HTTP requests for invoice processing.
type Handler struct {
	orch     *pipeline.Orchestrator
	store    db.Store
	registry *vendor.Registry
	exporter *export.Service
	archive  *storage.Archive // nil when no object storage is configured
	logger   *zap.Logger
}

// NewHandler wires the API over the pipeline and its stores.
func NewHandler(
	orch *pipeline.Orchestrator,
	store db.Store,
	registry *vendor.Registry,
	exporter *export.Service,
	archive *storage.Archive,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		orch:     orch,
		store:    store,
		registry: registry,
		exporter: exporter,
		archive:  archive,
		logger:   logger,
	}
}

// SetupRoutes configures the HTTP routes. The login handler and auth
// middleware are optional; without them the API runs open.
func (h *Handler) SetupRoutes(authMW mux.MiddlewareFunc, login http.HandlerFunc) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.Health).Methods("GET")
	if login != nil {
		router.HandleFunc("/api/login", login).Methods("POST")
	}

	api := router.PathPrefix("/api").Subrouter()
	if authMW != nil {
		api.Use(authMW)
	}

	api.HandleFunc("/process-invoice", h.ProcessInvoice).Methods("POST")
	api.HandleFunc("/invoices", h.GetInvoices).Methods("GET")
	api.HandleFunc("/invoice/{id}", h.GetInvoice).Methods("GET")
	api.HandleFunc("/vendors", h.GetVendors).Methods("GET")
	api.HandleFunc("/vendors", h.AddVendor).Methods("POST")
	api.HandleFunc("/vendors/suggest", h.SuggestVendor).Methods("POST")
	api.HandleFunc("/export", h.ExportXLSX).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return router
}

// ProcessResponse wraps a document result with persistence details.
type ProcessResponse struct {
	models.DocumentResult
	Saved           bool     `json:"saved"`
	SavedCount      int      `json:"saved_count"`
	SaveErrors      []string `json:"save_errors,omitempty"`
	ArchiveObject   string   `json:"archive_object,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// ProcessInvoice runs the full tier chain on one uploaded document.
func (h *Handler) ProcessInvoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "no file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		h.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	tmp.Close()

	var archiveObject string
	if h.archive != nil {
		archiveObject, err = h.archive.Upload(ctx, tmp.Name(), header.Filename)
		if err != nil {
			// Archiving is best effort; extraction proceeds regardless.
			h.logger.Warn("archive upload failed",
				zap.String("file", header.Filename), zap.Error(err))
		}
	}

	result := h.orch.ProcessDocument(ctx, tmp.Name())
	result.Source = header.Filename

	resp := ProcessResponse{
		DocumentResult:  result,
		ArchiveObject:   archiveObject,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if h.store != nil && result.Status != models.StatusError {
		saved := db.SaveDocument(ctx, h.store, result)
		resp.Saved = saved.Saved
		resp.SavedCount = saved.SavedCount
		resp.SaveErrors = saved.Errors
	}

	h.logger.Info("document processed",
		zap.String("file", header.Filename),
		zap.String("status", string(result.Status)),
		zap.Int("pages", len(result.Pages)),
		zap.Int("saved", resp.SavedCount),
		zap.Float64("seconds", resp.DurationSeconds))

	h.sendJSON(w, http.StatusOK, resp)
}

// GetInvoices lists stored invoices, newest first.
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	invoices, err := h.store.GetAll(r.Context(), limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get invoices: %v", err))
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// GetInvoice returns one stored invoice by id.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("invoice not found: %v", err))
		return
	}
	h.sendJSON(w, http.StatusOK, inv)
}

// GetVendors lists the registered vendor patterns.
func (h *Handler) GetVendors(w http.ResponseWriter, r *http.Request) {
	vendors := h.registry.Vendors()
	h.sendJSON(w, http.StatusOK, map[string]any{
		"vendors": vendors,
		"count":   len(vendors),
	})
}

// AddVendor registers a new vendor pattern.
func (h *Handler) AddVendor(w http.ResponseWriter, r *http.Request) {
	var p vendor.Pattern
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.AddVendor(p); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("vendor registered", zap.String("vendor_id", p.ID))
	h.sendJSON(w, http.StatusCreated, h.registry.Get(p.ID))
}

// SuggestVendorRequest carries sample invoice numbers for rule inference.
type SuggestVendorRequest struct {
	VendorName    string   `json:"vendor_name"`
	SampleNumbers []string `json:"sample_numbers"`
}

// SuggestVendor infers a vendor rule set from sample invoice numbers. The
// suggestion is returned for review, not registered.
func (h *Handler) SuggestVendor(w http.ResponseWriter, r *http.Request) {
	var req SuggestVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	suggestion, err := vendor.SuggestPattern(req.VendorName, req.SampleNumbers)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, suggestion)
}

// ExportXLSX streams all stored invoices as a workbook.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	data, err := h.exporter.InvoicesXLSX(r.Context(), limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("export failed: %v", err))
		return
	}

	filename := fmt.Sprintf("invoices_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// GetStats returns per-month invoice counts and totals.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.MonthlyStats(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]any{"monthly": stats})
}

// Health reports service liveness and registry size.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"vendors": len(h.registry.Vendors()),
	})
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, map[string]string{"error": message})
}
