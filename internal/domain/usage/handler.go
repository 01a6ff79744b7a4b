package usage

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/domain/account"
	"github.com/nestora/nestora-api/internal/pkg/response"
	"github.com/nestora/nestora-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Increment handles POST /usage/increment.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	req, accountID, ok := h.decodeCounterRequest(w, r)
	if !ok {
		return
	}

	value, err := h.svc.Increment(r.Context(), accountID, Feature(req.Feature))
	if err != nil {
		h.writeCounterError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{"feature": req.Feature, "value": value})
}

// Decrement handles POST /usage/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	req, accountID, ok := h.decodeCounterRequest(w, r)
	if !ok {
		return
	}

	value, err := h.svc.Decrement(r.Context(), accountID, Feature(req.Feature))
	if err != nil {
		h.writeCounterError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{"feature": req.Feature, "value": value})
}

// SetValue handles POST /usage/set.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req SetValueRequest
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

	if err := h.svc.SetValue(r.Context(), accountID, Feature(req.Feature), req.Value); err != nil {
		switch {
		case errors.Is(err, ErrNegativeValue):
			response.BadRequest(w, "counter value cannot be negative")
		default:
			h.writeCounterError(w, err)
		}
		return
	}

	response.OK(w, map[string]interface{}{"feature": req.Feature, "value": req.Value})
}

// Status handles GET /usage/{accountID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	status, err := h.svc.Status(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			response.NotFound(w, "account not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"features": status})
}

// ResetMonthly handles POST /usage/reset-monthly. Safe to call more
// than once per period.
func (h *Handler) ResetMonthly(w http.ResponseWriter, r *http.Request) {
	reset, err := h.svc.ResetMonthly(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"counters_reset": reset})
}

// Consume returns a handler that increments the feature for the acting
// account. Routes using it sit behind the capacity middleware, so the
// increment only runs when the plan still has room.
func (h *Handler) Consume(f Feature) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuid.Parse(r.Header.Get("X-Account-ID"))
		if err != nil {
			response.BadRequest(w, "missing or invalid X-Account-ID header")
			return
		}

		value, err := h.svc.Increment(r.Context(), accountID, f)
		if err != nil {
			h.writeCounterError(w, err)
			return
		}

		response.OK(w, map[string]interface{}{"feature": f, "value": value})
	}
}

func (h *Handler) decodeCounterRequest(w http.ResponseWriter, r *http.Request) (*CounterRequest, uuid.UUID, bool) {
	var req CounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return nil, uuid.Nil, false
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return nil, uuid.Nil, false
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.BadRequest(w, "invalid account_id")
		return nil, uuid.Nil, false
	}
	return &req, accountID, true
}

func (h *Handler) writeCounterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownFeature):
		response.BadRequest(w, "unknown usage feature")
	case errors.Is(err, account.ErrNotFound):
		response.NotFound(w, "account not found")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/increment", h.Increment)
	r.Post("/decrement", h.Decrement)
	r.Post("/set", h.SetValue)
	r.Post("/reset-monthly", h.ResetMonthly)
	r.Get("/{accountID}", h.Status)
	return r
}
