package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/projection"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

func token(t *testing.T, secret, userID string, isAdmin bool, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := &Claims{
		Admin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type testServer struct {
	router *gin.Engine
	ledger *ledger.Ledger
	admin  string
	alice  string
	bob    string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	store := memory.NewMemoryLedgerStore()
	l := ledger.NewLedger(store)
	h := NewHandler(l, projection.NewProjector(store), DeductionDefaults{
		TaxRate: decimal.NewFromInt(2),
		FeeRate: decimal.RequireFromString("0.5"),
		MinFee:  decimal.RequireFromString("1.50"),
		MaxFee:  decimal.NewFromInt(25),
	})
	return testServer{
		router: NewRouter(h, testSecret, gin.TestMode),
		ledger: l,
		admin:  token(t, testSecret, "admin-1", true, time.Hour),
		alice:  token(t, testSecret, "alice", false, time.Hour),
		bob:    token(t, testSecret, "bob", false, time.Hour),
	}
}

func (s testServer) do(t *testing.T, method, path, bearer string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) Response[T] {
	t.Helper()
	var resp Response[T]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func (s testServer) createAccount(t *testing.T, owner, number, opening string) models.Account {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/admin/accounts", s.admin, map[string]any{
		"user_id":         owner,
		"account_number":  number,
		"opening_balance": opening,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rr.Code, rr.Body.String())
	}
	return *decode[models.Account](t, rr).Data
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !decode[map[string]string](t, rr).Success {
		t.Fatal("expected success envelope")
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "alice", "4487", "10")
	path := "/accounts/" + acc.ID

	cases := map[string]string{
		"missing":      "",
		"wrong secret": token(t, "other-secret", "alice", false, time.Hour),
		"expired":      token(t, testSecret, "alice", false, -time.Minute),
		"garbage":      "not-a-jwt",
	}
	for name, bearer := range cases {
		t.Run(name, func(t *testing.T) {
			rr := s.do(t, http.MethodGet, path, bearer, nil)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if decode[struct{}](t, rr).Success {
				t.Fatal("expected failure envelope")
			}
		})
	}

	if rr := s.do(t, http.MethodGet, path, s.alice, nil); rr.Code != http.StatusOK {
		t.Fatalf("owner should read the account, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodGet, path, s.bob, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("other users should be forbidden, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodGet, "/admin/accounts", s.alice, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("admin routes should be forbidden for users, got %d", rr.Code)
	}
}

func TestMovementEndpoints(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "alice", "4487", "100")

	rr := s.do(t, http.MethodPost, "/accounts/"+acc.ID+"/deposits", s.alice, map[string]any{"amount": "50", "description": "Payroll"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit: %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/accounts/"+acc.ID+"/withdrawals", s.alice, map[string]any{"amount": "500"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overdraft, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/accounts/"+acc.ID+"/withdrawals", s.alice, map[string]any{"amount": "-1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodGet, "/accounts/"+acc.ID+"/balance", s.alice, nil)
	balance := decode[balanceResponse](t, rr).Data
	if balance == nil || !balance.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected balance 150, got %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodGet, "/accounts/"+acc.ID+"/transactions", s.alice, nil)
	views := decode[[]projection.View](t, rr).Data
	if views == nil || len(*views) != 1 || (*views)[0].DisplayAmount != "$50.00" {
		t.Fatalf("unexpected transactions: %s", rr.Body.String())
	}
}

func TestIdempotencyHeader(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "alice", "4487", "0")
	path := "/accounts/" + acc.ID + "/deposits"

	first := s.do(t, http.MethodPost, path, s.alice, map[string]any{"amount": 10}, "Idempotency-Key", "abc")
	second := s.do(t, http.MethodPost, path, s.alice, map[string]any{"amount": 10}, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("unexpected statuses %d / %d", first.Code, second.Code)
	}
	if decode[models.Transaction](t, first).Data.ID != decode[models.Transaction](t, second).Data.ID {
		t.Fatal("expected the replayed record")
	}

	reused := s.do(t, http.MethodPost, "/accounts/"+acc.ID+"/withdrawals", s.alice, map[string]any{"amount": 10}, "Idempotency-Key", "abc")
	if reused.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a reused key, got %d: %s", reused.Code, reused.Body.String())
	}

	balance, _ := s.ledger.Balance(context.Background(), models.Session{IsAdmin: true}, acc.ID)
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected one deposit applied, balance %s", balance)
	}
}

func TestTransferAndApprovalEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := s.createAccount(t, "alice", "1111", "100")
	b := s.createAccount(t, "bob", "2222", "0")

	rr := s.do(t, http.MethodPost, "/transfers", s.alice, map[string]any{
		"from_account_id": a.ID,
		"to_account_id":   b.ID,
		"amount":          "25",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("transfer: %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/transfers", s.alice, map[string]any{
		"from_account_id": a.ID,
		"to_account_id":   a.ID,
		"amount":          "1",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for same account, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/transfers/pending", s.alice, map[string]any{
		"from_account_id": a.ID,
		"to_account_id":   b.ID,
		"amount":          "10",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("pending transfer: %d %s", rr.Code, rr.Body.String())
	}
	pendingID := decode[models.Transaction](t, rr).Data.ID

	rr = s.do(t, http.MethodGet, "/admin/transactions/pending", s.admin, nil)
	pending := decode[[]models.Transaction](t, rr).Data
	if pending == nil || len(*pending) != 1 {
		t.Fatalf("expected one pending record: %s", rr.Body.String())
	}

	if rr := s.do(t, http.MethodPost, "/admin/transactions/"+pendingID+"/approve", s.admin, nil); rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}
	if rr := s.do(t, http.MethodPost, "/admin/transactions/"+pendingID+"/approve", s.admin, nil); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second approval, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/admin/transactions/missing/reject", s.admin, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transaction, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodGet, "/accounts/"+b.ID+"/summary", s.bob, nil)
	summary := decode[projection.Summary](t, rr).Data
	if summary == nil || !summary.Balance.Equal(decimal.NewFromInt(35)) || !summary.Credits.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("unexpected summary: %s", rr.Body.String())
	}
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "alice", "4487", "1500")

	rr := s.do(t, http.MethodPost, "/admin/accounts/"+acc.ID+"/adjustments", s.admin, map[string]any{
		"gross_amount": "1000",
		"description":  "Bonus",
		"apply_tax":    true,
		"apply_fee":    true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("adjust: %d %s", rr.Code, rr.Body.String())
	}
	result := decode[ledger.AdjustmentResult](t, rr).Data
	if result == nil || !result.Net.Equal(decimal.NewFromInt(975)) || len(result.Records) != 3 {
		t.Fatalf("unexpected adjustment: %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/admin/accounts/"+acc.ID+"/adjustments", s.admin, map[string]any{
		"gross_amount": "100",
		"apply_tax":    true,
		"tax_rate":     "-50",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative tax rate, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/admin/accounts/"+acc.ID+"/deductions", s.admin, map[string]any{"amount": "75", "invisible": true})
	if rr.Code != http.StatusCreated {
		t.Fatalf("deduct: %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodGet, "/accounts/"+acc.ID+"/balance", s.alice, nil)
	if b := decode[balanceResponse](t, rr).Data; b == nil || !b.Balance.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("expected 2400, got %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodGet, "/accounts/"+acc.ID+"/statement.xlsx", s.alice, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != xlsxContentType || rr.Body.Len() == 0 {
		t.Fatalf("unexpected statement response: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = s.do(t, http.MethodDelete, "/admin/accounts/"+acc.ID, s.admin, nil)
	deleted := decode[deletedResponse](t, rr).Data
	if rr.Code != http.StatusOK || deleted == nil || deleted.DeletedTransactions != 4 {
		t.Fatalf("unexpected delete response: %d %s", rr.Code, rr.Body.String())
	}
	if rr := s.do(t, http.MethodGet, "/accounts/"+acc.ID, s.admin, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}

	s.createAccount(t, "carol", "5551", "10")
	s.createAccount(t, "carol", "5552", "0")
	if rr := s.do(t, http.MethodDelete, "/admin/users/carol/accounts", s.alice, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin, got %d", rr.Code)
	}
	rr = s.do(t, http.MethodDelete, "/admin/users/carol/accounts", s.admin, nil)
	removed := decode[ledger.UserDeletion](t, rr).Data
	if rr.Code != http.StatusOK || removed == nil || removed.Accounts != 2 {
		t.Fatalf("unexpected user delete response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestStatusForUnknownErrorHidesDetails(t *testing.T) {
	status, message := statusFor(jwt.ErrTokenMalformed)
	if status != http.StatusInternalServerError || message != "internal error" {
		t.Fatalf("unexpected mapping %d %q", status, message)
	}
}
