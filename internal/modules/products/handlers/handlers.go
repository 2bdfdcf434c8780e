// Package handlers provides HTTP handlers for structured-note products.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/coupons"
	"github.com/aristath/noteengine/internal/modules/lifecycle"
	"github.com/aristath/noteengine/internal/modules/products"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// ProductService is what the handlers need from *products.Service.
type ProductService interface {
	Create(in lifecycle.ProductInput, at time.Time) (*domain.ProductLifecycleData, error)
	Get(id string, at time.Time) (*domain.ProductLifecycleData, error)
	List(at time.Time) ([]*domain.ProductLifecycleData, error)
	Evaluate(id string, at time.Time) (*lifecycle.Report, error)
	WhatIf(id string, o lifecycle.Overrides, at time.Time) (*lifecycle.Report, error)
	UpdatePrices(id string, prices map[string]float64, at time.Time) (*lifecycle.Report, error)
	AddFixing(id string, f domain.Fixing, at time.Time) (*lifecycle.Report, error)
	RecordIssuerCall(id string, date, at time.Time) (*lifecycle.Report, error)
}

// Handler handles product HTTP requests
type Handler struct {
	service ProductService
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new products handler
func NewHandler(service ProductService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "products").Logger(),
	}
}

// evaluationDate reads the optional ?at=YYYY-MM-DD parameter.
func (h *Handler) evaluationDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return h.now(), nil
	}
	return time.ParseInLocation(dateLayout, raw, time.UTC)
}

// HandleList handles GET /api/products
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if list == nil {
		list = []*domain.ProductLifecycleData{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"products": list, "count": len(list)})
}

// HandleCreate handles POST /api/products
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	var in lifecycle.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.service.Create(in, at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /api/products/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(chi.URLParam(r, "id"), at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleReport handles GET /api/products/{id}/report
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleCoupons handles GET /api/products/{id}/coupons
func (h *Handler) HandleCoupons(w http.ResponseWriter, r *http.Request) {
	report, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	entries := report.Coupons
	if entries == nil {
		entries = []domain.CouponEntry{}
	}
	h.writeJSON(w, http.StatusOK, struct {
		Coupons       []domain.CouponEntry `json:"coupons"`
		Summary       *coupons.Summary     `json:"summary,omitempty"`
		ScheduleError string               `json:"schedule_error,omitempty"`
	}{entries, report.CouponSummary, report.ScheduleError})
}

// HandleScenarios handles GET /api/products/{id}/scenarios
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	report, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report.Scenarios)
}

// HandleTimeline handles GET /api/products/{id}/events
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	report, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events":           report.Product.Events,
		"progress_pct":     report.Product.ProgressPct,
		"days_to_maturity": report.Product.DaysToMaturity,
	})
}

// HandleUpdatePrices handles PUT /api/products/{id}/prices
func (h *Handler) HandleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	var req struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	report, err := h.service.UpdatePrices(chi.URLParam(r, "id"), req.Prices, at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleAddFixing handles POST /api/products/{id}/fixings
func (h *Handler) HandleAddFixing(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	var req struct {
		Date  string  `json:"date"`
		Level float64 `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	report, err := h.service.AddFixing(chi.URLParam(r, "id"), domain.Fixing{Date: date, Level: req.Level}, at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, report)
}

// HandleIssuerCall handles POST /api/products/{id}/issuer-call
func (h *Handler) HandleIssuerCall(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	report, err := h.service.RecordIssuerCall(chi.URLParam(r, "id"), date, at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleWhatIf handles POST /api/products/{id}/what-if
func (h *Handler) HandleWhatIf(w http.ResponseWriter, r *http.Request) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return
	}
	var o lifecycle.Overrides
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	report, err := h.service.WhatIf(chi.URLParam(r, "id"), o, at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) (*lifecycle.Report, bool) {
	at, ok := h.parseAt(w, r)
	if !ok {
		return nil, false
	}
	report, err := h.service.Evaluate(chi.URLParam(r, "id"), at)
	if err != nil {
		h.handleError(w, err)
		return nil, false
	}
	return report, true
}

func (h *Handler) parseAt(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	at, err := h.evaluationDate(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "at must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return at, true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation    domain.ValidationErrors
		invalidBasket *domain.InvalidBasketError
		unknownBucket *domain.UnknownBucketError
		missingTerms  *domain.MissingTermsForBucketError
	)
	switch {
	case errors.Is(err, products.ErrProductNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation),
		errors.As(err, &invalidBasket),
		errors.As(err, &unknownBucket),
		errors.As(err, &missingTerms),
		errors.Is(err, products.ErrUnknownUnderlying),
		errors.Is(err, products.ErrNotCallable),
		errors.Is(err, products.ErrIssuerCallRecorded):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Product request failed")
		h.writeError(w, status, "Internal server error")
		return
	}

	body := map[string]interface{}{"error": err.Error()}
	var validation domain.ValidationErrors
	if errors.As(err, &validation) {
		fields := make(map[string]string, len(validation))
		for _, v := range validation {
			fields[v.Field] = v.Message
		}
		body["fields"] = fields
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
