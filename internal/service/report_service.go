package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// Summary aggregates the ledger. Transfer credits count only the receiving
// leg; bill payments are reported as a positive total.
type Summary struct {
	TotalDeposits        decimal.Decimal `json:"total_deposits"`
	TotalTransferCredits decimal.Decimal `json:"total_transfer_credits"`
	TotalBillPayments    decimal.Decimal `json:"total_bill_payments"`
}

func Summarize(txs []domain.Transaction) Summary {
	sum := Summary{
		TotalDeposits:        decimal.Zero,
		TotalTransferCredits: decimal.Zero,
		TotalBillPayments:    decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionDeposit:
			sum.TotalDeposits = sum.TotalDeposits.Add(tx.Amount)
		case domain.TransactionTransfer:
			if tx.Amount.IsPositive() {
				sum.TotalTransferCredits = sum.TotalTransferCredits.Add(tx.Amount)
			}
		case domain.TransactionBillPayment:
			sum.TotalBillPayments = sum.TotalBillPayments.Sub(tx.Amount)
		}
	}
	return sum
}

// Report is a generated summary and where it was written.
type Report struct {
	Summary     Summary   `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
	Path        string    `json:"path"`
}

type ReportService struct {
	ledger *LedgerService
	dir    string
	logger *slog.Logger
}

func NewReportService(ledger *LedgerService, dir string, logger *slog.Logger) *ReportService {
	return &ReportService{ledger: ledger, dir: dir, logger: logger}
}

// Generate summarizes every transaction and exports the result.
func (s *ReportService) Generate(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary := Summarize(s.ledger.ListAllTransactions(domain.SortDateAsc))
	at := s.ledger.now()

	path, err := s.Export(summary, at)
	if err != nil {
		s.logger.Error("Report export failed", "error", err)
		return nil, err
	}

	s.ledger.audit.Log("Report exported")
	s.logger.Info("Report generated", "path", path)
	return &Report{Summary: summary, GeneratedAt: at, Path: path}, nil
}

// maxReportsPerSecond bounds the suffixes tried when several reports share
// a timestamp.
const maxReportsPerSecond = 100

// Export writes the summary as a plain-text artifact named after at. A
// report never replaces an earlier one: a numeric suffix is added when the
// name is taken.
func (s *ReportService) Export(summary Summary, at time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.ErrIO.Wrap(err)
	}

	base := "report-" + at.Format("20060102-150405")
	content := []byte(FormatReport(summary, at))
	for n := 1; n <= maxReportsPerSecond; n++ {
		name := base + ".txt"
		if n > 1 {
			name = fmt.Sprintf("%s-%d.txt", base, n)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if stderrors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", errors.ErrIO.Wrap(err)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", errors.ErrIO.Wrap(err)
		}
		if err := f.Close(); err != nil {
			return "", errors.ErrIO.Wrap(err)
		}
		return path, nil
	}
	return "", errors.ErrIO.WithDetails("too many reports for " + base)
}

func FormatReport(summary Summary, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction report (%s)\n", at.Format("2006-01-02 15:04:05"))
	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&b, "Total deposits: $%s\n", summary.TotalDeposits.StringFixed(2))
	fmt.Fprintf(&b, "Total transfers: $%s\n", summary.TotalTransferCredits.StringFixed(2))
	fmt.Fprintf(&b, "Total bill payments: $%s\n", summary.TotalBillPayments.StringFixed(2))
	return b.String()
}
