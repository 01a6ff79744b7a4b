package wallet_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nestora/nestora-api/internal/domain/wallet"
)

type walletAPIResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Balance struct {
			Available int64 `json:"available"`
			Pending   int64 `json:"pending"`
			Total     int64 `json:"total"`
		} `json:"balance"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWalletEndpointsIntegration(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	accountID := createTestAccount(t, db)

	repo := wallet.NewRepository(db)
	svc := wallet.NewService(repo, nil)
	h := wallet.NewHandler(svc)

	r := chi.NewRouter()
	r.Mount("/api/v1/wallets", h.Routes())

	t.Run("GET balance initial", func(t *testing.T) {
		resp := performWalletRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%s/balance", accountID), nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeWalletResponse(t, resp)
		if !body.Success || body.Data.Balance.Total != 0 {
			t.Fatalf("expected success=true total=0, got success=%v total=%d", body.Success, body.Data.Balance.Total)
		}
	})

	t.Run("POST credit lands pending", func(t *testing.T) {
		payload := map[string]interface{}{
			"account_id":     accountID.String(),
			"amount":         10000,
			"payment_method": "card",
			"reference_id":   "handler_pay_1",
		}
		resp := performWalletRequest(t, r, http.MethodPost, "/api/v1/wallets/credit", payload)
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
		}

		resp = performWalletRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%s/balance", accountID), nil)
		body := decodeWalletResponse(t, resp)
		if body.Data.Balance.Pending != 10000 || body.Data.Balance.Available != 0 {
			t.Fatalf("expected pending=10000 available=0, got pending=%d available=%d",
				body.Data.Balance.Pending, body.Data.Balance.Available)
		}
	})

	t.Run("POST credit validation error", func(t *testing.T) {
		payload := map[string]interface{}{
			"account_id":     accountID.String(),
			"amount":         -5,
			"payment_method": "card",
			"reference_id":   "handler_pay_2",
		}
		resp := performWalletRequest(t, r, http.MethodPost, "/api/v1/wallets/credit", payload)
		if resp.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", resp.Code)
		}
	})
}

func performWalletRequest(t *testing.T, r chi.Router, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload failed: %v", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeWalletResponse(t *testing.T, resp *httptest.ResponseRecorder) walletAPIResponse {
	t.Helper()

	var body walletAPIResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return body
}
