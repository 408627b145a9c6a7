package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/adapter/storage"
	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/core/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	cache := storage.NewMemoryCache()
	store.PutAccount(domain.Account{
		ID:          "acct-1",
		DisplayName: "Guest Investor",
		KYCStatus:   domain.KYCStatusVerified,
		CashBalance: decimal.RequireFromString("1000.00"),
		CreatedAt:   time.Now().UTC(),
	})
	store.PutProperty(domain.Property{
		ID:                  "amsterdam-canal-house",
		Name:                "Amsterdam Canal House",
		TokenPrice:          decimal.RequireFromString("100.00"),
		TokensAvailable:     25000,
		MonthlyRentPerToken: decimal.RequireFromString("0.37"),
	})

	h := NewHTTPHandler(
		service.NewAccountService(store, cache),
		service.NewTradeService(store, cache),
		service.NewCatalogService(store),
		service.NewGovernanceService(store),
	)
	mux := http.NewServeMux()
	h.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestBuyEndpoint_Settles(t *testing.T) {
	server, store := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/buy",
		`{"request_id":"r1","account_id":"acct-1","property_id":"amsterdam-canal-house","quantity":5}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]int
	json.NewDecoder(resp.Body).Decode(&out)
	if out["quantity"] != 5 {
		t.Errorf("expected quantity 5, got %d", out["quantity"])
	}

	account, _ := store.GetAccount(context.Background(), "acct-1")
	if !account.CashBalance.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("expected balance 500.00, got %s", account.CashBalance)
	}
}

func TestBuyEndpoint_InsufficientFunds(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/buy",
		`{"request_id":"r1","account_id":"acct-1","property_id":"amsterdam-canal-house","quantity":11}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
}

func TestBuyEndpoint_DuplicateRequest(t *testing.T) {
	server, _ := newTestServer(t)
	body := `{"request_id":"r1","account_id":"acct-1","property_id":"amsterdam-canal-house","quantity":1}`

	first := postJSON(t, server.URL+"/api/buy", body)
	first.Body.Close()
	second := postJSON(t, server.URL+"/api/buy", body)
	defer second.Body.Close()

	if second.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 on replay, got %d", second.StatusCode)
	}
}

func TestDepositEndpoint_RejectsBadAmount(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/deposit",
		`{"request_id":"r1","account_id":"acct-1","amount":"-50"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWithdrawEndpoint_Overdraft(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/withdraw",
		`{"request_id":"r1","account_id":"acct-1","amount":"5000"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
}

func TestVoteEndpoint_NotEligible(t *testing.T) {
	server, store := newTestServer(t)
	store.PutProposal(domain.Proposal{ID: "prop-1", PropertyID: "amsterdam-canal-house"})

	resp := postJSON(t, server.URL+"/api/vote",
		`{"account_id":"acct-1","proposal_id":"prop-1","choice":"yes"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestPortfolioEndpoint_RequiresAccountID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/portfolio")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPropertiesEndpoint_ListsCatalog(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/properties")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Properties []domain.Property `json:"properties"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out.Properties) != 1 {
		t.Errorf("expected 1 property, got %d", len(out.Properties))
	}
}
