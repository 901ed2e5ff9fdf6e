// Package worker processes receipt uploads queued in the receipt inbox.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"expensetracker/internal/amqp"
	"expensetracker/internal/api"
	"expensetracker/internal/log"
	"expensetracker/internal/receipt"
)

// ReceiptWorker drives queued receipt images through the ingestion flow.
type ReceiptWorker struct {
	backend    receipt.Backend
	currency   string
	autoCommit bool
	currencies CurrencySource
	logger     *log.Logger
}

var (
	// ErrUnsupportedCurrency rejects messages whose currency the API does not list.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrSessionExpired stops the consumer after the API refused the stored
	// token. Pending messages stay queued until the user logs in again.
	ErrSessionExpired = errors.New("session expired")
)

// CurrencySource lists the currency codes the API accepts.
type CurrencySource interface {
	Currencies(ctx context.Context) ([]string, error)
}

type Option func(*ReceiptWorker)

// WithCurrencySource checks per-message currency overrides against src.
func WithCurrencySource(src CurrencySource) Option {
	return func(w *ReceiptWorker) {
		w.currencies = src
	}
}

// NewReceiptWorker creates a worker. When autoCommit is true every scanned
// receipt becomes an expense; otherwise only messages asking for it do.
func NewReceiptWorker(backend receipt.Backend, currency string, autoCommit bool, logger *log.Logger, opts ...Option) *ReceiptWorker {
	if logger == nil {
		logger = log.Nop()
	}
	w := &ReceiptWorker{
		backend:    backend,
		currency:   currency,
		autoCommit: autoCommit,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleReceiptUpload processes a single receipt upload message from AMQP.
// Errors that retrying cannot fix are wrapped with amqp.Reject.
func (w *ReceiptWorker) HandleReceiptUpload(ctx context.Context, msg *amqp.ReceiptUploadMessage) error {
	logger := w.logger.With(log.FieldMessageID, msg.ID.String(), log.FieldFileName, msg.FileName)

	data, err := msg.Image()
	if err != nil {
		return amqp.Reject(err)
	}
	file, err := receipt.NewFile(msg.FileName, data)
	if err != nil {
		return amqp.Reject(err)
	}

	currency := msg.Currency
	if currency == "" {
		currency = w.currency
	} else if err := w.checkCurrency(ctx, logger, currency); err != nil {
		return amqp.Reject(err)
	}
	flow := receipt.NewFlow(w.backend,
		receipt.WithLogger(logger),
		receipt.WithCurrency(currency),
		receipt.WithNotifier(receipt.LogNotifier{Logger: logger}),
	)

	if msg.ExpenseID != nil {
		_, err := flow.Attach(ctx, *msg.ExpenseID, file)
		return classify(err)
	}

	result, err := flow.Select(ctx, file)
	if err != nil {
		return classify(err)
	}

	if !msg.AutoCommit && !w.autoCommit {
		logger.InfoContext(ctx, "Receipt scanned, commit not requested",
			log.FieldMerchant, result.MerchantName,
			log.FieldAmount, result.TotalAmount.String(),
			log.FieldConfidence, result.Confidence)
		return nil
	}

	created, err := flow.Commit(ctx)
	if err != nil {
		return classify(err)
	}
	if created.ID != nil {
		logger.InfoContext(ctx, "Expense created from queued receipt", log.FieldExpenseID, *created.ID)
	}
	return nil
}

// checkCurrency only fails when the list was fetched and lacks code; a failed
// lookup is logged and the API gets the final say.
func (w *ReceiptWorker) checkCurrency(ctx context.Context, logger *log.Logger, code string) error {
	if w.currencies == nil {
		return nil
	}
	codes, err := w.currencies.Currencies(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Currency lookup failed", log.FieldError, err, log.FieldCurrency, code)
		return nil
	}
	if !slices.Contains(codes, code) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	return nil
}

// classify marks client errors (4xx) as permanent. A 401 stops the consumer
// instead, since every later message would fail the same way. Transport and
// server failures stay retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrTransport) || errors.Is(err, context.Canceled) {
		return err
	}
	if api.IsUnauthorized(err) {
		return amqp.Stop(fmt.Errorf("%w: %w", ErrSessionExpired, err))
	}
	status := api.StatusCode(err)
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return amqp.Reject(err)
	}
	return err
}
