// Package ir provides the shared domain types for splitledger.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - amounts are int64 minor currency units
//   - Ledger amounts are never negative
//   - All JSON tags use snake_case
//   - Transaction ordering uses the logical seq, never CreatedAt
package ir
