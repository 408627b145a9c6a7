package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/core/service"
)

// HTTPHandler is a thin JSON adapter over the ledger services. It owns no
// business rules beyond request parsing and error-to-status mapping.
type HTTPHandler struct {
	accounts   *service.AccountService
	trades     *service.TradeService
	catalog    *service.CatalogService
	governance *service.GovernanceService
}

func NewHTTPHandler(accounts *service.AccountService, trades *service.TradeService, catalog *service.CatalogService, governance *service.GovernanceService) *HTTPHandler {
	return &HTTPHandler{accounts: accounts, trades: trades, catalog: catalog, governance: governance}
}

// Register attaches all routes to the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/deposit", h.Deposit)
	mux.HandleFunc("/api/withdraw", h.Withdraw)
	mux.HandleFunc("/api/buy", h.Buy)
	mux.HandleFunc("/api/sell", h.Sell)
	mux.HandleFunc("/api/vote", h.Vote)
	mux.HandleFunc("/api/portfolio", h.Portfolio)
	mux.HandleFunc("/api/transactions", h.Transactions)
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/api/properties", h.Properties)
	mux.HandleFunc("/api/proposals", h.Proposals)
}

type cashRequest struct {
	RequestID string `json:"request_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

type tradeRequest struct {
	RequestID  string `json:"request_id"`
	AccountID  string `json:"account_id"`
	PropertyID string `json:"property_id"`
	Quantity   int    `json:"quantity"`
}

type voteRequest struct {
	AccountID  string `json:"account_id"`
	ProposalID string `json:"proposal_id"`
	Choice     string `json:"choice"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.cashOp(w, r, h.accounts.Deposit)
}

func (h *HTTPHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.cashOp(w, r, h.accounts.Withdraw)
}

func (h *HTTPHandler) cashOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, requestID, accountID string, amount decimal.Decimal) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RequestID == "" || req.AccountID == "" || req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
		return
	}

	if err := op(r.Context(), req.RequestID, req.AccountID, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) Buy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RequestID == "" || req.AccountID == "" || req.PropertyID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	quantity, err := h.trades.Buy(r.Context(), req.RequestID, req.AccountID, req.PropertyID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quantity": quantity})
}

func (h *HTTPHandler) Sell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RequestID == "" || req.AccountID == "" || req.PropertyID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	proceeds, err := h.trades.Sell(r.Context(), req.RequestID, req.AccountID, req.PropertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"proceeds": proceeds.StringFixed(2)})
}

func (h *HTTPHandler) Vote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.AccountID == "" || req.ProposalID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	err := h.governance.Vote(r.Context(), req.AccountID, req.ProposalID, domain.VoteChoice(req.Choice))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id is required"})
		return
	}

	positions, total, err := h.accounts.Portfolio(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	type positionJSON struct {
		PropertyID   string `json:"property_id"`
		PropertyName string `json:"property_name"`
		Quantity     int    `json:"quantity"`
		TokenPrice   string `json:"token_price"`
		Value        string `json:"value"`
	}
	out := struct {
		Positions  []positionJSON `json:"positions"`
		TotalValue string         `json:"total_value"`
	}{Positions: make([]positionJSON, 0, len(positions)), TotalValue: total.StringFixed(2)}
	for _, p := range positions {
		out.Positions = append(out.Positions, positionJSON{
			PropertyID:   p.PropertyID,
			PropertyName: p.PropertyName,
			Quantity:     p.Quantity,
			TokenPrice:   p.TokenPrice.StringFixed(2),
			Value:        p.Value.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id is required"})
		return
	}

	transactions, err := h.accounts.Transactions(r.Context(), accountID, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id is required"})
		return
	}

	history, err := h.accounts.History(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (h *HTTPHandler) Properties(w http.ResponseWriter, r *http.Request) {
	properties, err := h.catalog.Properties(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"properties": properties})
}

func (h *HTTPHandler) Proposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.governance.Proposals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidChoice):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInsufficientFunds):
		status, message = http.StatusPaymentRequired, "insufficient funds"
	case errors.Is(err, service.ErrSupplyExceeded):
		status, message = http.StatusConflict, "not enough tokens available"
	case errors.Is(err, service.ErrNotEligible):
		status, message = http.StatusForbidden, "must hold tokens of this property to vote"
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	}
	writeJSON(w, status, errorResponse{Error: message})
}
