package dispute

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/domain/hold"
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

// File handles POST /disputes.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	var req FileDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	holdID, err := uuid.Parse(req.HoldID)
	if err != nil {
		response.BadRequest(w, "invalid hold_id")
		return
	}
	filedBy, err := uuid.Parse(req.FiledBy)
	if err != nil {
		response.BadRequest(w, "invalid filed_by")
		return
	}

	d, err := h.svc.File(r.Context(), holdID, filedBy, req.Reason, req.Evidence)
	if err != nil {
		switch {
		case errors.Is(err, hold.ErrNotFound):
			response.NotFound(w, "hold not found")
		case errors.Is(err, ErrWindowExpired):
			response.Conflict(w, "dispute window has expired")
		case errors.Is(err, ErrInvalidState):
			response.Conflict(w, "hold is not in a disputable state")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, d)
}

// Get handles GET /disputes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "dispute not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, d)
}

// Resolve handles POST /disputes/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	var req ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	receipt, err := h.svc.Resolve(r.Context(), id, Resolution(req.Resolution), req.RefundAmount)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "dispute not found")
		case errors.Is(err, ErrAlreadyResolved):
			response.Conflict(w, "dispute already resolved")
		case errors.Is(err, ErrInvalidState):
			response.Conflict(w, "hold state does not match the dispute")
		case errors.Is(err, ErrInvalidResolution):
			response.BadRequest(w, "resolution must be payer, payee, or split")
		case errors.Is(err, ErrInvalidRefundAmount):
			response.BadRequest(w, "refund amount must be positive and within the disputed amount")
		case errors.Is(err, hold.ErrNoDestination):
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

// ListOpen handles GET /disputes/open.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	disputes, err := h.svc.ListOpen(r.Context(), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"disputes": disputes})
}

// Standing handles GET /disputes/standing/{accountID}.
func (h *Handler) Standing(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	count, flagged, err := h.svc.ComplaintStanding(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"upheld_count":       count,
		"flagged_for_review": flagged,
	})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.File)
	r.Get("/open", h.ListOpen)
	r.Get("/standing/{accountID}", h.Standing)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/resolve", h.Resolve)
	})
	return r
}
