package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/pkg/response"
)

// accountHeader carries the acting account, set by the caller-facing
// gateway that terminates auth in front of this service.
const accountHeader = "X-Account-ID"

// FeatureChecker answers whether an account may consume one more unit
// of a feature.
type FeatureChecker interface {
	Check(ctx context.Context, accountID uuid.UUID, feature string) error
}

// LimitErrorDetails describes the upgrade information for a limit error.
type LimitErrorDetails interface {
	error
	CurrentValue() int64
	LimitValue() int64
	PlanNameValue() string
	UpgradeToValue() string
}

// LimitPayload is the 429 response body for plan limits.
type LimitPayload struct {
	Message   string `json:"message"`
	Current   int64  `json:"current"`
	Limit     int64  `json:"limit"`
	PlanName  string `json:"plan_name"`
	UpgradeTo string `json:"upgrade_to"`
}

// WriteLimitExceeded writes a structured 429 response if the error is a
// limit error. Returns false when the error is something else.
func WriteLimitExceeded(w http.ResponseWriter, err error) bool {
	var limitErr LimitErrorDetails
	if !errors.As(err, &limitErr) {
		return false
	}

	payload := &LimitPayload{
		Message:   err.Error(),
		Current:   limitErr.CurrentValue(),
		Limit:     limitErr.LimitValue(),
		PlanName:  limitErr.PlanNameValue(),
		UpgradeTo: limitErr.UpgradeToValue(),
	}

	response.ErrorWithDetails(
		w,
		http.StatusTooManyRequests,
		"LIMIT_EXCEEDED",
		payload.Message,
		map[string]string{
			"current":    strconv.FormatInt(payload.Current, 10),
			"limit":      strconv.FormatInt(payload.Limit, 10),
			"plan_name":  payload.PlanName,
			"upgrade_to": payload.UpgradeTo,
		},
	)
	return true
}

// RequireFeatureCapacity blocks the request with a 429 when the acting
// account has exhausted the feature's plan limit.
func RequireFeatureCapacity(checker FeatureChecker, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				next.ServeHTTP(w, r)
				return
			}

			accountID, err := uuid.Parse(r.Header.Get(accountHeader))
			if err != nil {
				response.BadRequest(w, "missing or invalid "+accountHeader+" header")
				return
			}

			if err := checker.Check(r.Context(), accountID, feature); err != nil {
				if WriteLimitExceeded(w, err) {
					return
				}
				response.InternalError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
