package receipt

import (
	"fmt"
	"io"
	"sync"

	"expensetracker/internal/log"
)

// Notifier surfaces user-visible outcomes of the flow.
type Notifier interface {
	Success(msg string)
	Failure(msg string, err error)
}

// LogNotifier reports outcomes as log records.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Success(msg string) {
	n.logger().Info(msg, log.FieldSuccess, true)
}

func (n LogNotifier) Failure(msg string, err error) {
	n.logger().Error(msg, log.FieldSuccess, false, log.FieldError, err)
}

func (n LogNotifier) logger() *log.Logger {
	if n.Logger == nil {
		return log.Nop()
	}
	return n.Logger
}

// WriterNotifier prints one line per outcome, for terminal use.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "✓ %s\n", msg)
}

func (n *WriterNotifier) Failure(msg string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		fmt.Fprintf(n.w, "✗ %s (%v)\n", msg, err)
		return
	}
	fmt.Fprintf(n.w, "✗ %s\n", msg)
}

type nopNotifier struct{}

func (nopNotifier) Success(string)        {}
func (nopNotifier) Failure(string, error) {}
