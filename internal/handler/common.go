package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/service"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// handleError writes err. Details copied from an underlying cause (driver
// messages, file paths) never reach the client.
func handleError(w http.ResponseWriter, err error) {
	appErr := errors.AsAppError(err)
	switch {
	case appErr.Code == errors.InternalError:
		appErr = errors.ErrInternal
	case appErr.Code == errors.IOError:
		appErr = errors.ErrIO
	case appErr.Unwrap() != nil:
		appErr = appErr.WithDetails("")
	}
	writeError(w, appErr)
}

func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error())
	}
	return nil
}

// parseAmount accepts amounts as decimal strings so no precision is lost on
// the wire.
func parseAmount(s string) (decimal.Decimal, *errors.AppError) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error())
	}
	return amount, nil
}

func parseSort(r *http.Request) (domain.SortKey, *errors.AppError) {
	key, err := domain.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		return "", errors.ErrInvalidInput.WithDetails(err.Error())
	}
	return key, nil
}

type sessionKey struct{}

// WithSession stores the authenticated session on the request context.
func WithSession(ctx context.Context, session *service.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom returns the session set by the auth middleware, or nil.
func SessionFrom(ctx context.Context) *service.Session {
	session, _ := ctx.Value(sessionKey{}).(*service.Session)
	return session
}

type AccountResponse struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	IsBlocked bool   `json:"is_blocked"`
}

func toAccountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		AccountID: a.ID,
		UserID:    a.UserID,
		Balance:   a.Balance.StringFixed(2),
		IsBlocked: a.IsBlocked,
	}
}

type TransactionResponse struct {
	TransactionID   string `json:"transaction_id"`
	AccountID       string `json:"account_id"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transaction_type"`
	Timestamp       string `json:"timestamp"`
}

func toTransactionResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   tx.ID,
		AccountID:       tx.AccountID,
		Amount:          tx.Amount.StringFixed(2),
		TransactionType: string(tx.Type),
		Timestamp:       tx.Timestamp.Format(time.RFC3339Nano),
	}
}

func toTransactionResponses(txs []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}
