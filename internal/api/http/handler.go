package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/service"
)

var errBadRequest = errors.New("malformed request body")

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	ledgerSvc service.LedgerService
	orderSvc  service.OrderService
	grantSvc  service.GrantService
	db        Pinger
}

func NewHandler(ledgerSvc service.LedgerService, orderSvc service.OrderService, grantSvc service.GrantService, db Pinger) *Handler {
	return &Handler{
		ledgerSvc: ledgerSvc,
		orderSvc:  orderSvc,
		grantSvc:  grantSvc,
		db:        db,
	}
}

// NewRouter registers every route behind the auth, logging and recovery middleware.
func NewRouter(h *Handler, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.Use(RecoveryMiddleware, LoggingMiddleware, auth.Handler)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/ledger", h.GetLedger).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.ListMyOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.ReserveOrder).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.SetOrderStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/users/{id}/balance", h.GetUserBalance).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/payouts", h.CreditTokens).Methods(http.MethodPost)
	admin.HandleFunc("/payouts/revoke", h.RevokePayout).Methods(http.MethodPost)
	admin.HandleFunc("/grants/plan", h.PlanGrants).Methods(http.MethodPost)

	return r
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBalance(w, r, userID)
}

func (h *Handler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, mux.Vars(r)["id"])
}

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, userID string) {
	balance, err := h.ledgerSvc.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

type ledgerResponse struct {
	Summary *domain.LedgerSummary `json:"summary"`
	Entries []domain.LedgerEntry  `json:"entries"`
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.ledgerSvc.GetLedgerSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.ledgerSvc.ListEntries(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse{Summary: summary, Entries: entries})
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orderSvc.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type reserveRequest struct {
	ShopItemID string `json:"shop_item_id"`
}

func (h *Handler) ReserveOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.orderSvc.ReserveOrder(r.Context(), userID, req.ShopItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type setStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
	Memo   *string            `json:"memo"`
}

func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.orderSvc.SetOrderStatus(r.Context(), mux.Vars(r)["id"], req.Status, req.Memo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}
	orders, err := h.orderSvc.ListOrders(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type creditRequest struct {
	Tokens       int64   `json:"tokens"`
	Memo         string  `json:"memo"`
	SubmissionID *string `json:"submission_id"`
}

func (h *Handler) CreditTokens(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.ledgerSvc.CreditTokens(r.Context(), mux.Vars(r)["id"], req.Tokens, req.Memo, req.SubmissionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type revokeRequest struct {
	SubmissionID string `json:"submission_id"`
	Reason       string `json:"reason"`
}

func (h *Handler) RevokePayout(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.ledgerSvc.RevokeSubmissionEntry(r.Context(), req.SubmissionID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type planRequest struct {
	BudgetDollars *decimal.Decimal `json:"budget_dollars"`
	ApprovedOnly  bool             `json:"approved_only"`
}

// PlanGrants is a dry run: it returns the plan without disbursing anything.
func (h *Handler) PlanGrants(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.grantSvc.PlanGrants(r.Context(), service.PlanOptions{
		Budget:       req.BudgetDollars,
		ApprovedOnly: req.ApprovedOnly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
