package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// Phase is the state of the current receipt attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreviewReady
	PhaseProcessing
	PhaseExtracted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreviewReady:
		return "preview_ready"
	case PhaseProcessing:
		return "processing"
	case PhaseExtracted:
		return "extracted"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// User-visible notification texts.
const (
	MsgScanSucceeded   = "Receipt scanned successfully!"
	MsgScanFailed      = "Failed to scan receipt. Please try again."
	MsgCommitSucceeded = "Expense created successfully!"
	MsgCommitFailed    = "Failed to create expense. Please try again."
	MsgUploadSucceeded = "Receipt attached successfully!"
	MsgUploadFailed    = "Failed to attach receipt. Please try again."
)

var (
	// ErrSuperseded is returned by an attempt that a newer Select or a
	// Discard replaced before it finished. Its outcome was dropped.
	ErrSuperseded = errors.New("receipt attempt superseded")

	ErrNothingToCommit  = errors.New("no extracted receipt to commit")
	ErrCommitInProgress = errors.New("commit already in progress")
)

// Backend is the subset of the API client the flow talks to.
type Backend interface {
	ScanReceipt(ctx context.Context, img core.ReceiptImage) (*core.ReceiptData, error)
	CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error)
	UploadReceipt(ctx context.Context, id int64, img core.ReceiptImage) (*core.Expense, error)
}

// Snapshot is the observable state of a Flow.
type Snapshot struct {
	Phase    Phase
	FileName string
	Preview  string
	Result   *core.ReceiptData
	Err      error
	Attempt  uint64
}

// Flow drives one receipt at a time through
// Idle → PreviewReady → Processing → Extracted|Failed → Idle.
//
// Selecting a new file cancels any attempt still in flight; the last
// selection wins and stale outcomes never reach the state or the notifier.
type Flow struct {
	backend  Backend
	notifier Notifier
	logger   *log.Logger
	currency string

	mu         sync.Mutex
	phase      Phase
	fileName   string
	preview    string
	result     *core.ReceiptData
	lastErr    error
	attempt    uint64
	cancel     context.CancelFunc
	committing bool
}

type Option func(*Flow)

func WithNotifier(n Notifier) Option {
	return func(f *Flow) {
		f.notifier = n
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithCurrency sets the currency used for committed drafts.
func WithCurrency(code string) Option {
	return func(f *Flow) {
		f.currency = code
	}
}

func NewFlow(backend Backend, opts ...Option) *Flow {
	f := &Flow{
		backend:  backend,
		notifier: nopNotifier{},
		currency: DefaultCurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Nop()
	}
	f.logger = f.logger.WithComponent(log.ComponentReceipt)
	return f
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		Phase:    f.phase,
		FileName: f.fileName,
		Preview:  f.preview,
		Err:      f.lastErr,
		Attempt:  f.attempt,
	}
	if f.result != nil {
		r := *f.result
		s.Result = &r
	}
	return s
}

// Select starts a new attempt for file and blocks until it settles. The
// preview becomes visible in Snapshot as soon as it is ready, before the scan
// returns.
func (f *Flow) Select(ctx context.Context, file File) (*core.ReceiptData, error) {
	ctx, attempt := f.begin(ctx, file)
	defer f.finish(attempt)

	logger := f.logger.With(log.NewFields().
		WithReceiptFile(file.Name, file.Format(), len(file.Data)).
		WithOperation(log.OpScan).ToSlice()...).
		With(log.FieldAttempt, attempt)

	var img core.ReceiptImage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		preview := file.DataURL()
		f.apply(attempt, func() {
			f.preview = preview
			if f.phase == PhaseIdle {
				f.phase = PhasePreviewReady
			}
		})
		return nil
	})
	g.Go(func() error {
		img = file.Image()
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, f.fail(attempt, logger, fmt.Errorf("encode receipt: %w", err))
	}

	if !f.apply(attempt, func() { f.phase = PhaseProcessing }) {
		return nil, ErrSuperseded
	}
	logger.DebugContext(ctx, "Submitting receipt for scan")

	data, err := f.backend.ScanReceipt(ctx, img)
	if err != nil {
		return nil, f.fail(attempt, logger, err)
	}

	if !f.apply(attempt, func() {
		f.phase = PhaseExtracted
		f.result = data
		f.lastErr = nil
	}) {
		return nil, ErrSuperseded
	}

	logger.InfoContext(ctx, "Receipt scanned",
		log.FieldMerchant, data.MerchantName,
		log.FieldAmount, data.TotalAmount.String(),
		log.FieldConfidence, data.Confidence)
	f.notifier.Success(MsgScanSucceeded)
	return data, nil
}

// Commit turns the extracted result into an expense. On failure the result
// is kept so the commit can be retried.
func (f *Flow) Commit(ctx context.Context) (*core.Expense, error) {
	f.mu.Lock()
	if f.phase != PhaseExtracted || f.result == nil {
		f.mu.Unlock()
		return nil, ErrNothingToCommit
	}
	if f.committing {
		f.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	f.committing = true
	attempt := f.attempt
	draft := Draft(*f.result, f.currency)
	f.mu.Unlock()

	created, err := f.backend.CreateExpense(ctx, draft)

	f.mu.Lock()
	f.committing = false
	current := f.attempt == attempt
	if err == nil && current {
		f.reset()
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.ErrorContext(ctx, "Failed to create expense from receipt",
			log.FieldOperation, log.OpCommit, log.FieldError, err)
		f.notifier.Failure(MsgCommitFailed, err)
		return nil, fmt.Errorf("commit receipt: %w", err)
	}

	f.logger.InfoContext(ctx, "Expense created from receipt",
		log.FieldOperation, log.OpCommit,
		log.FieldAmount, draft.Amount.String(),
		log.FieldCurrency, draft.CurrencyCode)
	f.notifier.Success(MsgCommitSucceeded)
	return created, nil
}

// Discard drops the current preview and result without submitting anything.
// An attempt still in flight is cancelled.
func (f *Flow) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.attempt++
	f.reset()
}

// Attach uploads file as the receipt of an existing expense. It does not
// touch the flow state.
func (f *Flow) Attach(ctx context.Context, expenseID int64, file File) (*core.Expense, error) {
	updated, err := f.backend.UploadReceipt(ctx, expenseID, file.Image())
	if err != nil {
		f.logger.ErrorContext(ctx, "Failed to attach receipt",
			log.FieldOperation, log.OpUpload,
			log.FieldExpenseID, expenseID,
			log.FieldFileName, file.Name,
			log.FieldError, err)
		f.notifier.Failure(MsgUploadFailed, err)
		return nil, fmt.Errorf("attach receipt: %w", err)
	}
	f.logger.InfoContext(ctx, "Receipt attached",
		log.FieldOperation, log.OpUpload,
		log.FieldExpenseID, expenseID,
		log.FieldFileName, file.Name)
	f.notifier.Success(MsgUploadSucceeded)
	return updated, nil
}

// begin restarts the machine from Idle for a new attempt, cancelling the
// previous one.
func (f *Flow) begin(ctx context.Context, file File) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	f.attempt++
	f.reset()
	f.fileName = file.Name
	f.cancel = cancel
	return ctx, f.attempt
}

func (f *Flow) finish(attempt uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == attempt && f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// apply runs fn under the lock if attempt is still the current one.
func (f *Flow) apply(attempt uint64, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt != attempt {
		return false
	}
	fn()
	return true
}

func (f *Flow) fail(attempt uint64, logger *log.Logger, err error) error {
	if !f.apply(attempt, func() {
		f.phase = PhaseFailed
		f.lastErr = err
	}) {
		logger.Debug("Dropping outcome of superseded receipt attempt", log.FieldError, err)
		return ErrSuperseded
	}
	logger.Error("Receipt scan failed", log.FieldError, err)
	f.notifier.Failure(MsgScanFailed, err)
	return fmt.Errorf("receipt attempt: %w", err)
}

// reset must be called with f.mu held.
func (f *Flow) reset() {
	f.phase = PhaseIdle
	f.fileName = ""
	f.preview = ""
	f.result = nil
	f.lastErr = nil
}
