// Package store provides SQLite-backed durable storage for splitledger.
//
// Tables:
//   - users: registered parties and their usernames
//   - chats, chat_members: group membership in join order
//   - ledgers: one outstanding balance per ordered (debtor, creditor) pair
//   - transactions: append-only record of loans and payments
//
// # Invariants
//
//   - Ledger amounts are positive integers in minor units. A ledger updated to
//     zero is deleted, so a zero-amount ledger is never persisted.
//   - debtor <> creditor and UNIQUE(debtor, creditor) are enforced by the
//     schema; the simplification engine relies on both.
//   - Transactions are ordered by seq (a logical clock), never by created_at.
//   - Read methods return empty slices, not nil, when nothing matches.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements engine.LedgerWriter through UpdateLedger.
package store
