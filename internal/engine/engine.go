package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/splitledger/internal/ir"
)

// LedgerWriter persists a ledger whose amount changed and returns the
// persisted value. Implemented by store.Store.
type LedgerWriter interface {
	UpdateLedger(ctx context.Context, l ir.Ledger) (ir.Ledger, error)
}

// NopWriter accepts every update without persisting it.
// Used for previews and tests that only inspect the returned snapshot.
type NopWriter struct{}

// UpdateLedger returns l unchanged.
func (NopWriter) UpdateLedger(_ context.Context, l ir.Ledger) (ir.Ledger, error) {
	return l, nil
}

// Report summarizes the work done by one or more resolver passes.
type Report struct {
	Nettings        int   `json:"nettings"`
	Cancellations   int   `json:"cancellations"`
	LedgersWritten  int   `json:"ledgers_written"`
	AmountCancelled int64 `json:"amount_cancelled"`
}

// Changed reports whether any ledger was written.
func (r Report) Changed() bool {
	return r.LedgersWritten > 0
}

func (r *Report) add(o Report) {
	r.Nettings += o.Nettings
	r.Cancellations += o.Cancellations
	r.LedgersWritten += o.LedgersWritten
	r.AmountCancelled += o.AmountCancelled
}

// Result is the outcome of a simplification call.
type Result struct {
	Snapshot ir.Snapshot `json:"snapshot"`
	Report   Report      `json:"report"`
}

// Simplifier runs the simplification pipeline against a LedgerWriter.
//
// A Simplifier holds no per-call state and can be reused, but callers must
// not run two simplifications of the same group concurrently.
type Simplifier struct {
	writer LedgerWriter
	logger *slog.Logger
}

// Option configures a Simplifier.
type Option func(*Simplifier)

// WithLogger sets the logger used for pass diagnostics.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simplifier) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Simplifier that persists every changed ledger through w.
// A nil writer is replaced by NopWriter.
func New(w LedgerWriter, opts ...Option) *Simplifier {
	if w == nil {
		w = NopWriter{}
	}
	s := &Simplifier{
		writer: w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simplify runs the full pipeline:
//
//	build → bidirectional → rebuild → cycles → rebuild → return
//
// When the initial graph has no nodes the input is returned unchanged and no
// writes are issued. A writer failure aborts the call; ledgers persisted
// before the failure stay persisted.
func (s *Simplifier) Simplify(ctx context.Context, users []ir.User, ledgers []ir.Ledger) (*Result, error) {
	g := Build(users, ledgers)
	if g.Len() == 0 {
		return &Result{Snapshot: g.Snapshot()}, nil
	}
	s.logger.Debug("simplify starting", "nodes", g.Len(), "ledgers", len(ledgers))

	var rep Report
	bi, err := g.ResolveBidirectional(ctx, s.writer)
	rep.add(bi)
	if err != nil {
		s.logger.Error("bidirectional pass failed", "error", err)
		return nil, err
	}
	g.Rebuild()

	cy, err := g.ResolveCycles(ctx, s.writer)
	rep.add(cy)
	if err != nil {
		s.logger.Error("cycle pass failed", "error", err)
		return nil, err
	}
	g.Rebuild()

	s.logger.Debug("simplify finished",
		"nettings", rep.Nettings,
		"cancellations", rep.Cancellations,
		"ledgers_written", rep.LedgersWritten,
		"amount_cancelled", rep.AmountCancelled,
	)
	return &Result{Snapshot: g.Snapshot(), Report: rep}, nil
}

// ResolveBidirectional runs only the bidirectional resolver as a standalone
// pass: build → bidirectional → rebuild → return.
func (s *Simplifier) ResolveBidirectional(ctx context.Context, users []ir.User, ledgers []ir.Ledger) (*Result, error) {
	return s.single(ctx, users, ledgers, (*Graph).ResolveBidirectional)
}

// ResolveCycles runs only the cycle resolver as a standalone pass:
// build → cycles → rebuild → return.
func (s *Simplifier) ResolveCycles(ctx context.Context, users []ir.User, ledgers []ir.Ledger) (*Result, error) {
	return s.single(ctx, users, ledgers, (*Graph).ResolveCycles)
}

type resolver func(*Graph, context.Context, LedgerWriter) (Report, error)

func (s *Simplifier) single(ctx context.Context, users []ir.User, ledgers []ir.Ledger, run resolver) (*Result, error) {
	g := Build(users, ledgers)
	if g.Len() == 0 {
		return &Result{Snapshot: g.Snapshot()}, nil
	}
	rep, err := run(g, ctx, s.writer)
	if err != nil {
		s.logger.Error("resolver pass failed", "error", err)
		return nil, err
	}
	g.Rebuild()
	return &Result{Snapshot: g.Snapshot(), Report: rep}, nil
}
