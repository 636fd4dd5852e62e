package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/aggregate"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
	"github.com/V4T54L/dealboard/internal/query"
	"github.com/V4T54L/dealboard/internal/usecase"
)

// DealListResponse is the body of GET /deals.
type DealListResponse struct {
	Deals   []domain.Deal     `json:"deals"`
	Summary aggregate.Summary `json:"summary"`
}

// BoardResponse is the body of GET /pipeline.
type BoardResponse struct {
	Columns []aggregate.Column `json:"columns"`
	Summary aggregate.Summary  `json:"summary"`
}

// MoveRequest is the body of POST /deals/{id}/move.
type MoveRequest struct {
	Stage domain.StageID `json:"stage"`
}

// DropRequest is the body of POST /pipeline/drop.
type DropRequest struct {
	DealID      string         `json:"deal_id"`
	Source      domain.StageID `json:"source"`
	Destination domain.StageID `json:"destination"`
}

// DropResponse reports the outcome of a drop gesture.
type DropResponse struct {
	Deal  domain.Deal `json:"deal"`
	Moved bool        `json:"moved"`
}

// DealHandler serves the deal and pipeline endpoints. Every deal it writes
// out passes through the redactor; the store keeps the raw values.
type DealHandler struct {
	uc       *usecase.PipelineUseCase
	store    *pipeline.Store
	redactor *pii.Redactor
	logger   *slog.Logger
}

// NewDealHandler creates a new DealHandler. A nil redactor serves deals as stored.
func NewDealHandler(uc *usecase.PipelineUseCase, store *pipeline.Store, redactor *pii.Redactor, logger *slog.Logger) *DealHandler {
	if redactor == nil {
		redactor = pii.NewRedactor(nil, logger)
	}
	return &DealHandler{uc: uc, store: store, redactor: redactor, logger: logger}
}

// ListStages handles GET /stages.
func (h *DealHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.store.Registry().Stages())
}

// ListDeals handles GET /deals.
func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	deals := h.redactor.RedactAll(req.Apply(h.store.List()))
	respondWithJSON(w, http.StatusOK, DealListResponse{
		Deals:   deals,
		Summary: aggregate.Summarize(deals),
	})
}

// Board handles GET /pipeline. It accepts the same filters as ListDeals.
func (h *DealHandler) Board(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	deals := h.redactor.RedactAll(req.Apply(h.store.List()))
	respondWithJSON(w, http.StatusOK, BoardResponse{
		Columns: aggregate.Board(deals, h.store.Registry()),
		Summary: aggregate.Summarize(deals),
	})
}

// GetDeal handles GET /deals/{id}.
func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.redactor.Redact(deal))
}

// CreateDeal handles POST /deals.
func (h *DealHandler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var fields domain.NewDealFields
	if !decodeJSON(w, r, &fields) {
		return
	}
	deal, err := h.uc.CreateDeal(r.Context(), fields)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/deals/"+deal.ID)
	respondWithJSON(w, http.StatusCreated, h.redactor.Redact(deal))
}

// UpdateDeal handles PATCH /deals/{id}.
func (h *DealHandler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	var patch domain.DealPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	h.redactor.DropPlaceholders(&patch)
	if patch.IsEmpty() {
		WriteProblem(w, http.StatusBadRequest, "empty patch", "at least one field must be set", nil)
		return
	}
	deal, err := h.uc.EditDeal(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.redactor.Redact(deal))
}

// MoveDeal handles POST /deals/{id}/move.
func (h *DealHandler) MoveDeal(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deal, err := h.uc.MoveDeal(r.Context(), chi.URLParam(r, "id"), req.Stage)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.redactor.Redact(deal))
}

// DropDeal handles POST /pipeline/drop.
func (h *DealHandler) DropDeal(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DealID == "" || req.Destination == "" {
		WriteProblem(w, http.StatusBadRequest, "invalid drop", "deal_id and destination are required", nil)
		return
	}
	deal, moved, err := h.uc.DropDeal(r.Context(), req.DealID, req.Source, req.Destination)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, DropResponse{Deal: h.redactor.Redact(deal), Moved: moved})
}

// DeleteDeal handles DELETE /deals/{id}.
func (h *DealHandler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.DeleteDeal(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DealHandler) parseQuery(w http.ResponseWriter, r *http.Request) (query.Request, bool) {
	req, err := query.ParseRequest(r.URL.Query())
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", err.Error(), nil)
		return req, false
	}
	return req, true
}
