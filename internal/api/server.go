// Package api exposes the treasury ledger and the proposal registry over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/metrics"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/token"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/treasury"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/voting"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/wallet"
	"github.com/shopspring/decimal"
)

// CallerHeader carries the address of the account making the call.
const CallerHeader = "X-Caller"

var errBadCaller = errors.New("missing or invalid " + CallerHeader + " header")

type Server struct {
	treasury *treasury.Ledger
	registry *voting.Registry
	token    *token.Token
	wallet   *wallet.Book
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewServer(ledger *treasury.Ledger, registry *voting.Registry, tok *token.Token, book *wallet.Book, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		treasury: ledger,
		registry: registry,
		token:    tok,
		wallet:   book,
		metrics:  m,
		logger:   logger,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/treasury/owner", s.treasuryOwner)
	mux.HandleFunc("/treasury/sale", s.saleState)
	mux.HandleFunc("/treasury/sale/toggle", s.toggleSale)
	mux.HandleFunc("/treasury/shares", s.buyShares)
	mux.HandleFunc("/treasury/members", s.membership)
	mux.HandleFunc("/treasury/withdraw", s.withdraw)
	mux.HandleFunc("/treasury/balance", s.treasuryBalance)

	mux.HandleFunc("/registry/owner", s.registryOwner)
	mux.HandleFunc("/registry/dao", s.daoReference)
	mux.HandleFunc("/proposals", s.proposals)
	mux.HandleFunc("/proposals/{id}", s.proposal)
	mux.HandleFunc("/proposals/{id}/votes", s.vote)
	mux.HandleFunc("/proposals/{id}/close", s.closeProposal)

	mux.HandleFunc("/token", s.tokenInfo)
	mux.HandleFunc("/token/balance", s.tokenBalance)
	mux.HandleFunc("/token/transfer", s.tokenTransfer)

	mux.HandleFunc("/wallet/balance", s.walletBalance)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) treasuryOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Account{"owner": s.treasury.Owner()})
}

func (s *Server) saleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	active, err := s.treasury.IsSaleActive(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sale_active": active})
}

func (s *Server) toggleSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}

	active, err := s.treasury.ToggleSaleState(r.Context(), caller)
	s.observe("toggleSaleState", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sale_active": active})
}

func (s *Server) buyShares(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Shares uint64          `json:"shares"`
		Value  decimal.Decimal `json:"value"` // wei
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	purchase := models.SharePurchase{
		ID:             uuid.New().String(),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Buyer:          caller,
		Shares:         req.Shares,
		Value:          req.Value,
		CreatedAt:      time.Now(),
	}

	err := s.treasury.BuyShares(r.Context(), purchase)
	s.observe("buyShares", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SharesPurchased.Add(float64(req.Shares))
	}
	s.refreshHeldFunds(r)

	shares, err := s.treasury.SharesOwned(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"account":      caller,
		"shares_owned": shares,
	})
}

func (s *Server) membership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := models.ParseAccount(r.URL.Query().Get("account"))
	if !ok {
		http.Error(w, "account is a mandatory field", http.StatusBadRequest)
		return
	}

	member, err := s.treasury.IsMember(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	shares, err := s.treasury.SharesOwned(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":      account,
		"is_member":    member,
		"shares_owned": shares,
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}

	withdrawal, err := s.treasury.WithdrawFunds(r.Context(), caller)
	s.observe("withdrawFunds", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Withdrawals.Inc()
	}
	s.refreshHeldFunds(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"withdrawal_id": withdrawal.ID,
		"recipient":     withdrawal.Recipient,
		"amount":        withdrawal.Amount,
	})
}

func (s *Server) treasuryBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, err := s.treasury.CheckContractEthBalance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (s *Server) registryOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Account{"owner": s.registry.Owner()})
}

func (s *Server) daoReference(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reference, err := s.registry.MyDAO(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]models.Account{"dao": reference})

	case http.MethodPost:
		caller, ok := callerFrom(r)
		if !ok {
			http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
			return
		}
		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		reference, ok := models.ParseAccount(req.Address)
		if !ok {
			http.Error(w, "address is not a valid account", http.StatusBadRequest)
			return
		}

		err := s.registry.SetDAOContract(r.Context(), caller, reference)
		s.observe("setDAOContract", err)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]models.Account{"dao": reference})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) proposals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		proposals, err := s.registry.Proposals(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if proposals == nil {
			proposals = []models.Proposal{}
		}
		writeJSON(w, http.StatusOK, proposals)

	case http.MethodPost:
		caller, ok := callerFrom(r)
		if !ok {
			http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
			return
		}
		var req struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		proposal, err := s.registry.CreateProposal(r.Context(), caller, req.Description)
		s.observe("createProposal", err)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, proposal)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) proposal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := proposalID(r)
	if !ok {
		http.Error(w, "proposal id must be a positive integer", http.StatusBadRequest)
		return
	}

	proposal, err := s.registry.Proposal(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}
	id, ok := proposalID(r)
	if !ok {
		http.Error(w, "proposal id must be a positive integer", http.StatusBadRequest)
		return
	}
	var req struct {
		Support *bool `json:"support"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Support == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	proposal, err := s.registry.VoteOnProposal(r.Context(), caller, id, *req.Support)
	s.observe("voteOnProposal", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.VotesCast.WithLabelValues(strconv.FormatBool(*req.Support)).Inc()
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) closeProposal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}
	id, ok := proposalID(r)
	if !ok {
		http.Error(w, "proposal id must be a positive integer", http.StatusBadRequest)
		return
	}

	proposal, err := s.registry.CloseProposal(r.Context(), caller, id)
	s.observe("closeProposal", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) tokenInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         s.token.Name(),
		"symbol":       s.token.Symbol(),
		"decimals":     token.Decimals,
		"total_supply": s.token.TotalSupply(),
	})
}

func (s *Server) tokenBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := models.ParseAccount(r.URL.Query().Get("account"))
	if !ok {
		http.Error(w, "account is a mandatory field", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": s.token.BalanceOf(account),
	})
}

func (s *Server) tokenTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, errBadCaller.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	to, ok := models.ParseAccount(req.To)
	if !ok {
		http.Error(w, "to is a mandatory field", http.StatusBadRequest)
		return
	}

	err := s.token.Transfer(r.Context(), caller, to, req.Amount)
	s.observe("tokenTransfer", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    caller,
		"to":      to,
		"balance": s.token.BalanceOf(caller),
	})
}

func (s *Server) walletBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := models.ParseAccount(r.URL.Query().Get("account"))
	if !ok {
		http.Error(w, "account is a mandatory field", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": s.wallet.BalanceOf(account),
	})
}

func (s *Server) observe(operation string, err error) {
	if s.metrics != nil {
		s.metrics.Observe(operation, err)
	}
}

func (s *Server) refreshHeldFunds(r *http.Request) {
	if s.metrics == nil {
		return
	}
	held, err := s.treasury.CheckContractEthBalance(r.Context())
	if err != nil {
		s.logger.Warn("failed to read treasury balance", slog.String("error", err.Error()))
		return
	}
	s.metrics.HeldFunds.Set(held.Shift(-18).InexactFloat64())
}

// writeError maps domain errors to status codes. The body is the error text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("error", err.Error()))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, treasury.ErrUnauthorized), errors.Is(err, voting.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, voting.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, treasury.ErrSaleInactive),
		errors.Is(err, treasury.ErrNoFunds),
		errors.Is(err, treasury.ErrReentrantCall),
		errors.Is(err, voting.ErrClosed),
		errors.Is(err, voting.ErrAlreadyClosed),
		errors.Is(err, voting.ErrAlreadyVoted),
		errors.Is(err, treasury.ErrPurchaseConflict),
		errors.Is(err, token.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, treasury.ErrIncorrectPayment),
		errors.Is(err, treasury.ErrInvalidShareCount),
		errors.Is(err, treasury.ErrShareOverflow),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrZeroAccount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func callerFrom(r *http.Request) (models.Account, bool) {
	caller, ok := models.ParseAccount(r.Header.Get(CallerHeader))
	if !ok || models.IsZeroAccount(caller) {
		return models.Account{}, false
	}
	return caller, true
}

func proposalID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
