package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"banking-ledger/internal/service"
)

// AccountHandler serves the client operations. Every route sits behind the
// auth middleware, so a session is always present.
type AccountHandler struct {
	ledger *service.LedgerService
}

func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
	}
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	RecipientUsername string `json:"recipient_username"`
	Amount            string `json:"amount"`
}

type TransferResponse struct {
	Debit  TransactionResponse `json:"debit"`
	Credit TransactionResponse `json:"credit"`
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())

	accounts := h.ledger.Accounts(session.UserID)
	response := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, toAccountResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())

	account, err := h.ledger.CreateAccount(r.Context(), session.UserID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(*account))
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	accountID := mux.Vars(r)["account_id"]

	var req AmountRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}
	amount, appErr := parseAmount(req.Amount)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	tx, err := h.ledger.Deposit(r.Context(), session.UserID, accountID, amount)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(*tx))
}

func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	accountID := mux.Vars(r)["account_id"]

	var req TransferRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}
	amount, appErr := parseAmount(req.Amount)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	result, err := h.ledger.Transfer(r.Context(), &service.TransferRequest{
		UserID:            session.UserID,
		SourceAccountID:   accountID,
		RecipientUsername: req.RecipientUsername,
		Amount:            amount,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransferResponse{
		Debit:  toTransactionResponse(result.Debit),
		Credit: toTransactionResponse(result.Credit),
	})
}

func (h *AccountHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	accountID := mux.Vars(r)["account_id"]

	var req AmountRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}
	amount, appErr := parseAmount(req.Amount)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	tx, err := h.ledger.PayBill(r.Context(), session.UserID, accountID, amount)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(*tx))
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	accountID := mux.Vars(r)["account_id"]

	key, appErr := parseSort(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	txs, err := h.ledger.ListTransactions(session.UserID, accountID, key)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}
