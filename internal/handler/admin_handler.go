package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"banking-ledger/internal/service"
)

// AdminHandler serves employee-only operations.
type AdminHandler struct {
	ledger  *service.LedgerService
	reports *service.ReportService
}

func NewAdminHandler(ledger *service.LedgerService, reports *service.ReportService) *AdminHandler {
	return &AdminHandler{
		ledger:  ledger,
		reports: reports,
	}
}

type ReportResponse struct {
	GeneratedAt          string `json:"generated_at"`
	Path                 string `json:"path"`
	TotalDeposits        string `json:"total_deposits"`
	TotalTransferCredits string `json:"total_transfer_credits"`
	TotalBillPayments    string `json:"total_bill_payments"`
}

func (h *AdminHandler) BlockAccount(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AdminHandler) UnblockAccount(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AdminHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	accountID := mux.Vars(r)["account_id"]

	var err error
	if blocked {
		err = h.ledger.Block(r.Context(), accountID)
	} else {
		err = h.ledger.Unblock(r.Context(), accountID)
	}
	if err != nil {
		handleError(w, err)
		return
	}

	account, err := h.ledger.Account(accountID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (h *AdminHandler) ListAllTransactions(w http.ResponseWriter, r *http.Request) {
	key, appErr := parseSort(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponses(h.ledger.ListAllTransactions(key)))
}

func (h *AdminHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Generate(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReportResponse{
		GeneratedAt:          report.GeneratedAt.Format(time.RFC3339),
		Path:                 report.Path,
		TotalDeposits:        report.Summary.TotalDeposits.StringFixed(2),
		TotalTransferCredits: report.Summary.TotalTransferCredits.StringFixed(2),
		TotalBillPayments:    report.Summary.TotalBillPayments.StringFixed(2),
	})
}
