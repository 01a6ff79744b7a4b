package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/pkg/response"
	"github.com/nestora/nestora-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Credit handles POST /wallets/credit, a captured payment entering the pool.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.BadRequest(w, "invalid account_id")
		return
	}

	result, err := h.svc.Credit(r.Context(), accountID, req.Amount, PaymentMethod(req.PaymentMethod), req.ReferenceID, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero and reference_id is required")
		case errors.Is(err, ErrUnknownPaymentMethod):
			response.BadRequest(w, "unknown payment method")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference_id already used with a different amount")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

// ReleasePending handles POST /wallets/transactions/{id}/release.
func (h *Handler) ReleasePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	if err := h.svc.ReleasePending(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "transaction not found")
		case errors.Is(err, ErrNotPending):
			response.Conflict(w, "transaction is not in pending state")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// Balance handles GET /wallets/{accountID}/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// ListPending handles GET /wallets/{accountID}/transactions/pending.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	txns, err := h.svc.ListPending(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": txns})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/credit", h.Credit)
	r.Post("/transactions/{id}/release", h.ReleasePending)
	r.Get("/{accountID}/balance", h.Balance)
	r.Get("/{accountID}/transactions/pending", h.ListPending)
	return r
}
