// Package engine implements the splitledger debt-simplification engine.
//
// The engine takes a snapshot of a group's users and ledgers and removes
// redundant structure from the debt graph while preserving every party's
// net obligations.
//
// ARCHITECTURE:
//
// Rebuild, Don't Patch:
// A Graph is built from a snapshot once per resolver pass. Nodes hold
// indices into the graph's ledger arena, never pointers, so a resolver can
// change a ledger's amount without aliasing problems. Topology is never
// patched incrementally: after each pass (and after each cycle cancellation)
// zero-amount ledgers are pruned and the nodes are recomputed from scratch.
//
// Pass Order:
//  1. Build the graph
//  2. Bidirectional resolver nets every A→B / B→A pair
//  3. Rebuild
//  4. Cycle resolver cancels chains of length ≥ 3, rebuilding after each
//  5. Rebuild and return the snapshot
//
// Netting first is cheaper than letting the cycle search find 2-cycles, and
// it shrinks the graph the search has to walk.
//
// Persistence:
// Every ledger whose amount changes is handed to a LedgerWriter as soon as
// it changes. A writer failure aborts the pipeline; writes that already
// happened are not rolled back.
//
// CONCURRENCY:
// The engine is single-threaded and holds no locks. Callers must ensure only
// one simplification runs against a group's ledgers at a time.
package engine
