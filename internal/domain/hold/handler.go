package hold

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/pkg/payrail"
	"github.com/nestora/nestora-api/internal/pkg/response"
	"github.com/nestora/nestora-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /holds.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	payeeID, err := uuid.Parse(req.PayeeID)
	if err != nil {
		response.BadRequest(w, "invalid payee_id")
		return
	}
	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		response.BadRequest(w, "invalid payer_id")
		return
	}

	created, err := h.svc.Create(r.Context(), payeeID, payerID, req.Amount, req.SourceID)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "amount must be greater than zero")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, created)
}

// Get handles GET /holds/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid hold id")
		return
	}

	found, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "hold not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, found)
}

// Release handles POST /holds/{id}/release.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid hold id")
		return
	}

	var req ReleaseHoldRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
		if errs := validator.Validate(&req); errs != nil {
			response.ValidationError(w, errs)
			return
		}
	}

	receipt, err := h.svc.Release(r.Context(), id, req.Destination)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "hold not found")
		case errors.Is(err, ErrNotYetEligible):
			response.Conflict(w, "release date not reached")
		case errors.Is(err, ErrInvalidState):
			response.Conflict(w, "hold has already been released, disputed, or refunded")
		case errors.Is(err, ErrNoDestination):
			response.BadRequest(w, "payee has no payout destination on file")
		case errors.Is(err, payrail.ErrTransferFailed):
			response.Error(w, http.StatusBadGateway, "TRANSFER_FAILED", "payment rail rejected the transfer")
		case errors.Is(err, payrail.ErrUnconfirmed):
			response.Error(w, http.StatusBadGateway, "TRANSFER_UNCONFIRMED", "transfer outcome unknown, safe to retry")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, receipt)
}

// ListEligible handles GET /holds/eligible.
func (h *Handler) ListEligible(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	holds, err := h.svc.EligibleForRelease(r.Context(), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"holds": holds})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/eligible", h.ListEligible)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/release", h.Release)
	})
	return r
}
