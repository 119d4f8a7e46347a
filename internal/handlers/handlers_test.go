package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/perkhub/loyalty/internal/repository/postgres"
	"github.com/perkhub/loyalty/internal/service/ledger"
	"github.com/perkhub/loyalty/internal/service/query"
	"github.com/perkhub/loyalty/internal/service/redemption"
	"github.com/perkhub/loyalty/internal/testutil"
)

func TestAPI(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Handlers run over real services and the pool. Every subtest uses its own
	// customer, leftover rows don't interfere.
	storage := postgres.NewStorage(pg.Pool)
	ledgerService := ledger.NewService(storage, nil)
	redemptionService := redemption.NewService(redemption.Config{}, storage, ledgerService, nil)
	queryService := query.NewService(ledgerService, redemptionService)

	server := httptest.NewServer(NewRouter(ledgerService, redemptionService, queryService, nil))
	t.Cleanup(server.Close)

	do := func(t *testing.T, method string, path string, body any) (*http.Response, map[string]any) {
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(t.Context(), method, server.URL+path, reader)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		var decoded map[string]any
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json; charset=utf-8" {
			require.NoError(t, json.Unmarshal(raw, &decoded), "body should be valid json: %s", raw)
		}

		return resp, decoded
	}

	doList := func(t *testing.T, path string) (*http.Response, []map[string]any) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+path, nil)
		require.NoError(t, err)

		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		var decoded []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

		return resp, decoded
	}

	earn := func(t *testing.T, customerID uuid.UUID, businessID uuid.UUID, points int64) {
		resp, _ := do(t, http.MethodPost, "/api/loyalty/earn", map[string]any{
			"customer_id": customerID,
			"business_id": businessID,
			"points":      points,
			"description": "visit reward",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	t.Run("earn", func(t *testing.T) {
		t.Run("credits and returns the account", func(t *testing.T) {
			customerID, businessID := uuid.New(), uuid.New()

			resp, body := do(t, http.MethodPost, "/api/loyalty/earn", map[string]any{
				"customer_id": customerID,
				"business_id": businessID,
				"points":      100,
				"description": "visit reward",
			})

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, customerID.String(), body["customer_id"])
			require.Equal(t, float64(100), body["points"])
			require.Equal(t, float64(100), body["total_earned"])
			require.Equal(t, float64(0), body["total_spent"])
		})

		t.Run("rejects missing and non-positive points", func(t *testing.T) {
			resp, body := do(t, http.MethodPost, "/api/loyalty/earn", map[string]any{
				"customer_id": uuid.New(),
				"business_id": uuid.New(),
			})
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "validation_failed", body["error"])

			resp, body = do(t, http.MethodPost, "/api/loyalty/earn", map[string]any{
				"customer_id": uuid.New(),
				"business_id": uuid.New(),
				"points":      -5,
			})
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "validation_failed", body["error"])
		})

		t.Run("rejects malformed json", func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, server.URL+"/api/loyalty/earn", bytes.NewReader([]byte("{broken")))
			require.NoError(t, err)

			resp, err := server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("adjust", func(t *testing.T) {
		t.Run("debit correction over balance answers 402", func(t *testing.T) {
			customerID, businessID := uuid.New(), uuid.New()
			earn(t, customerID, businessID, 50)

			resp, _ := do(t, http.MethodPost, "/api/loyalty/adjust", map[string]any{
				"customer_id": customerID,
				"business_id": businessID,
				"points":      -60,
				"description": "manual correction",
			})

			require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		})

		t.Run("requires a description", func(t *testing.T) {
			resp, body := do(t, http.MethodPost, "/api/loyalty/adjust", map[string]any{
				"customer_id": uuid.New(),
				"business_id": uuid.New(),
				"points":      10,
			})

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "validation_failed", body["error"])
		})
	})

	t.Run("balance", func(t *testing.T) {
		t.Run("unknown pair answers 404", func(t *testing.T) {
			resp, _ := do(t, http.MethodGet, fmt.Sprintf("/api/loyalty/balance?customer_id=%s&business_id=%s", uuid.New(), uuid.New()), nil)

			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})

		t.Run("bad customer id answers 400", func(t *testing.T) {
			resp, _ := do(t, http.MethodGet, "/api/loyalty/balance?customer_id=not-a-uuid&business_id="+uuid.New().String(), nil)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("transactions", func(t *testing.T) {
		customerID, businessID := uuid.New(), uuid.New()
		earn(t, customerID, businessID, 100)

		resp, transactions := doList(t, "/api/loyalty/transactions?customer_id="+customerID.String())

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, transactions, 1)
		require.Equal(t, "earn", transactions[0]["kind"])
		require.Equal(t, float64(100), transactions[0]["points"])
	})

	t.Run("redemption lifecycle", func(t *testing.T) {
		customerID, businessID, campaignID := uuid.New(), uuid.New(), uuid.New()
		earn(t, customerID, businessID, 100)

		// Claim the reward: the code shows up here and nowhere else
		resp, created := do(t, http.MethodPost, "/api/redemptions", map[string]any{
			"customer_id": customerID,
			"business_id": businessID,
			"campaign_id": campaignID,
			"points":      60,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "pending", created["status"])
		require.NotEmpty(t, created["code"])
		id := created["id"].(string)
		code := created["code"].(string)

		resp, balance := do(t, http.MethodGet, fmt.Sprintf("/api/loyalty/balance?customer_id=%s&business_id=%s", customerID, businessID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(40), balance["points"])

		// Business scans the code
		resp, verified := do(t, http.MethodPost, "/api/redemptions/verify", map[string]any{"code": code})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, id, verified["id"])

		// And approves
		resp, approved := do(t, http.MethodPost, "/api/redemptions/"+id+"/approve", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "approved", approved["status"])
		require.NotEmpty(t, approved["redeemed_at"])
		require.Empty(t, approved["code"], "code should not be echoed after creation")

		// Second approve conflicts, balance is untouched
		resp, _ = do(t, http.MethodPost, "/api/redemptions/"+id+"/approve", nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, _ = do(t, http.MethodPost, "/api/redemptions/"+id+"/reject", nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, balance = do(t, http.MethodGet, fmt.Sprintf("/api/loyalty/balance?customer_id=%s&business_id=%s", customerID, businessID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(40), balance["points"])

		// The settled code scans as unknown now
		resp, _ = do(t, http.MethodPost, "/api/redemptions/verify", map[string]any{"code": code})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("create redemption", func(t *testing.T) {
		t.Run("over balance answers 402 and leaves no record", func(t *testing.T) {
			customerID, businessID := uuid.New(), uuid.New()
			earn(t, customerID, businessID, 50)

			resp, _ := do(t, http.MethodPost, "/api/redemptions", map[string]any{
				"customer_id": customerID,
				"business_id": businessID,
				"campaign_id": uuid.New(),
				"points":      60,
			})
			require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

			listResp, redemptions := doList(t, "/api/redemptions?customer_id="+customerID.String())
			require.Equal(t, http.StatusOK, listResp.StatusCode)
			require.Empty(t, redemptions)
		})

		t.Run("non-positive points fail validation", func(t *testing.T) {
			resp, _ := do(t, http.MethodPost, "/api/redemptions", map[string]any{
				"customer_id": uuid.New(),
				"business_id": uuid.New(),
				"campaign_id": uuid.New(),
				"points":      -1,
			})

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("resolve", func(t *testing.T) {
		t.Run("unknown id answers 404", func(t *testing.T) {
			resp, _ := do(t, http.MethodPost, "/api/redemptions/"+uuid.New().String()+"/approve", nil)

			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})

		t.Run("malformed id answers 400", func(t *testing.T) {
			resp, _ := do(t, http.MethodPost, "/api/redemptions/not-a-uuid/reject", nil)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("list redemptions", func(t *testing.T) {
		t.Run("requires a scope", func(t *testing.T) {
			resp, _ := do(t, http.MethodGet, "/api/redemptions", nil)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})

		t.Run("rejects unknown status", func(t *testing.T) {
			resp, _ := do(t, http.MethodGet, "/api/redemptions?customer_id="+uuid.New().String()+"&status=bogus", nil)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})

		t.Run("filters by status without leaking codes", func(t *testing.T) {
			customerID, businessID := uuid.New(), uuid.New()
			earn(t, customerID, businessID, 100)

			resp, created := do(t, http.MethodPost, "/api/redemptions", map[string]any{
				"customer_id": customerID,
				"business_id": businessID,
				"campaign_id": uuid.New(),
				"points":      30,
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			listResp, redemptions := doList(t, "/api/redemptions?customer_id="+customerID.String()+"&status=pending")
			require.Equal(t, http.StatusOK, listResp.StatusCode)
			require.Len(t, redemptions, 1)
			require.Equal(t, created["id"], redemptions[0]["id"])
			require.NotContains(t, redemptions[0], "code", "listing must not expose codes")
		})
	})
}
