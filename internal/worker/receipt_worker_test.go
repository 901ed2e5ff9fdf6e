package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/api"
	"expensetracker/internal/core"
)

type fakeBackend struct {
	scanErr   error
	createErr error
	uploadErr error

	scans   int
	created []core.Expense
	uploads []int64
}

func (b *fakeBackend) ScanReceipt(context.Context, core.ReceiptImage) (*core.ReceiptData, error) {
	b.scans++
	if b.scanErr != nil {
		return nil, b.scanErr
	}
	return &core.ReceiptData{
		MerchantName: "Coffee Shop",
		TotalAmount:  core.NewMoney("4.50"),
		Date:         core.NewDate(2024, 1, 15),
	}, nil
}

func (b *fakeBackend) CreateExpense(_ context.Context, e core.Expense) (*core.Expense, error) {
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created = append(b.created, e)
	id := int64(len(b.created))
	e.ID = &id
	return &e, nil
}

func (b *fakeBackend) UploadReceipt(_ context.Context, id int64, _ core.ReceiptImage) (*core.Expense, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	b.uploads = append(b.uploads, id)
	return &core.Expense{ID: &id}, nil
}

func message(name string) *amqp.ReceiptUploadMessage {
	return amqp.NewReceiptUploadMessage(name, []byte("image bytes"))
}

func TestScanOnlyByDefault(t *testing.T) {
	backend := &fakeBackend{}
	w := NewReceiptWorker(backend, "EUR", false, nil)

	require.NoError(t, w.HandleReceiptUpload(context.Background(), message("r.png")))
	assert.Equal(t, 1, backend.scans)
	assert.Empty(t, backend.created)
}

func TestAutoCommit(t *testing.T) {
	backend := &fakeBackend{}
	w := NewReceiptWorker(backend, "EUR", true, nil)

	require.NoError(t, w.HandleReceiptUpload(context.Background(), message("r.png")))
	require.Len(t, backend.created, 1)
	assert.Equal(t, "EUR", backend.created[0].CurrencyCode)
	assert.Equal(t, "Coffee Shop", backend.created[0].Title)
}

func TestMessageRequestsCommitWithCurrency(t *testing.T) {
	backend := &fakeBackend{}
	w := NewReceiptWorker(backend, "EUR", false, nil)

	msg := message("r.jpg")
	msg.AutoCommit = true
	msg.Currency = "GBP"
	require.NoError(t, w.HandleReceiptUpload(context.Background(), msg))
	require.Len(t, backend.created, 1)
	assert.Equal(t, "GBP", backend.created[0].CurrencyCode)
}

func TestAttachToExistingExpense(t *testing.T) {
	backend := &fakeBackend{}
	w := NewReceiptWorker(backend, "USD", true, nil)

	msg := message("hotel.png")
	id := int64(77)
	msg.ExpenseID = &id
	require.NoError(t, w.HandleReceiptUpload(context.Background(), msg))
	assert.Equal(t, []int64{77}, backend.uploads)
	assert.Zero(t, backend.scans)
	assert.Empty(t, backend.created)
}

func TestUnsupportedFileIsRejected(t *testing.T) {
	w := NewReceiptWorker(&fakeBackend{}, "USD", false, nil)

	err := w.HandleReceiptUpload(context.Background(), message("notes.pdf"))
	assert.ErrorIs(t, err, amqp.ErrReject)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reject bool
		stop   bool
	}{
		{"bad request", &api.Error{StatusCode: http.StatusBadRequest}, true, false},
		{"unauthorized", &api.Error{StatusCode: http.StatusUnauthorized}, false, true},
		{"server error", &api.Error{StatusCode: http.StatusBadGateway}, false, false},
		{"transport", fmt.Errorf("%w: dial", api.ErrTransport), false, false},
		{"unknown", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{scanErr: tt.err}
			w := NewReceiptWorker(backend, "USD", false, nil)

			err := w.HandleReceiptUpload(context.Background(), message("r.png"))
			require.Error(t, err)
			assert.Equal(t, tt.reject, errors.Is(err, amqp.ErrReject))
			assert.Equal(t, tt.stop, errors.Is(err, amqp.ErrStop))
		})
	}
}

func TestExpiredSessionKeepsMessagesQueued(t *testing.T) {
	backend := &fakeBackend{scanErr: &api.Error{StatusCode: http.StatusUnauthorized, Message: "token expired"}}
	w := NewReceiptWorker(backend, "USD", true, nil)

	for _, name := range []string{"first.png", "second.png"} {
		err := w.HandleReceiptUpload(context.Background(), message(name))
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrSessionExpired, name)
		assert.ErrorIs(t, err, amqp.ErrStop, name)
		assert.NotErrorIs(t, err, amqp.ErrReject, name)
	}
	assert.Equal(t, 2, backend.scans)
	assert.Empty(t, backend.created)
}

func TestCommitFailureIsReported(t *testing.T) {
	backend := &fakeBackend{createErr: &api.Error{StatusCode: http.StatusUnprocessableEntity}}
	w := NewReceiptWorker(backend, "USD", true, nil)

	err := w.HandleReceiptUpload(context.Background(), message("r.png"))
	assert.ErrorIs(t, err, amqp.ErrReject)
}

type fakeCurrencies struct {
	codes []string
	err   error
}

func (f fakeCurrencies) Currencies(context.Context) ([]string, error) {
	return f.codes, f.err
}

func TestCurrencyOverrideChecked(t *testing.T) {
	tests := []struct {
		name     string
		source   fakeCurrencies
		currency string
		reject   bool
	}{
		{"listed", fakeCurrencies{codes: []string{"USD", "GBP"}}, "GBP", false},
		{"not listed", fakeCurrencies{codes: []string{"USD"}}, "XYZ", true},
		{"lookup failed", fakeCurrencies{err: errors.New("offline")}, "GBP", false},
		{"default currency skips check", fakeCurrencies{codes: []string{}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			w := NewReceiptWorker(backend, "USD", true, nil, WithCurrencySource(tt.source))

			msg := message("r.png")
			msg.Currency = tt.currency
			err := w.HandleReceiptUpload(context.Background(), msg)
			if tt.reject {
				assert.ErrorIs(t, err, amqp.ErrReject)
				assert.ErrorIs(t, err, ErrUnsupportedCurrency)
				assert.Zero(t, backend.scans)
				return
			}
			require.NoError(t, err)
			assert.Len(t, backend.created, 1)
		})
	}
}
