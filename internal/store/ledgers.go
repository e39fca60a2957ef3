package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/ir"
)

const ledgerColumns = `id, debtor, creditor, amount`

// LoadGroupLedgers returns every ledger whose debtor and creditor are both in
// members, ordered by (debtor, creditor, id).
//
// Returns an empty slice (not nil) if members is empty or nothing matches.
func (s *Store) LoadGroupLedgers(ctx context.Context, members []ir.PartyID) ([]ir.Ledger, error) {
	if len(members) == 0 {
		return []ir.Ledger{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(members)), ",")
	args := make([]any, 0, 2*len(members))
	for _, m := range members {
		args = append(args, string(m))
	}
	args = append(args, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE debtor IN (`+placeholders+`) AND creditor IN (`+placeholders+`)
		ORDER BY debtor COLLATE BINARY ASC, creditor COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query group ledgers: %w", err)
	}
	defer rows.Close()

	ledgers := []ir.Ledger{}
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group ledgers: %w", err)
	}
	return ledgers, nil
}

// Ledger retrieves a ledger by id.
// Returns ErrLedgerNotFound if no such ledger exists.
func (s *Store) Ledger(ctx context.Context, id string) (ir.Ledger, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+` FROM ledgers WHERE id = ?
	`, id)
	return scanLedger(row)
}

// LedgerBetween retrieves the ledger where debtor owes creditor.
// Returns ErrLedgerNotFound if the pair has no outstanding balance.
func (s *Store) LedgerBetween(ctx context.Context, debtor, creditor ir.PartyID) (ir.Ledger, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+` FROM ledgers WHERE debtor = ? AND creditor = ?
	`, string(debtor), string(creditor))
	return scanLedger(row)
}

// InsertLedger creates a ledger for a new (debtor, creditor) pair with a
// fresh id. Returns ErrInvalidLedger for self ledgers or non-positive
// amounts.
func (s *Store) InsertLedger(ctx context.Context, debtor, creditor ir.PartyID, amount int64) (ir.Ledger, error) {
	l := ir.Ledger{
		ID:       s.ids.Generate(),
		Debtor:   debtor,
		Creditor: creditor,
		Amount:   amount,
	}
	if err := validateLedger(l); err != nil {
		return ir.Ledger{}, fmt.Errorf("insert ledger: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledgers (`+ledgerColumns+`) VALUES (?, ?, ?, ?)
	`, l.ID, string(l.Debtor), string(l.Creditor), l.Amount)
	if err != nil {
		return ir.Ledger{}, fmt.Errorf("insert ledger: %w", err)
	}
	return l, nil
}

// PutLedger writes a ledger with a caller-chosen id, replacing the amount if
// the id already exists. Used when importing fixtures.
func (s *Store) PutLedger(ctx context.Context, l ir.Ledger) error {
	if err := validateLedger(l); err != nil {
		return fmt.Errorf("put ledger: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledgers (`+ledgerColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET amount = excluded.amount
	`, l.ID, string(l.Debtor), string(l.Creditor), l.Amount)
	if err != nil {
		return fmt.Errorf("put ledger: %w", err)
	}
	return nil
}

// UpdateLedger persists the amount of an existing ledger and returns the
// persisted value. An amount of zero deletes the ledger.
//
// Returns ErrLedgerNotFound if the id is unknown, ErrInvalidLedger for a
// negative amount.
func (s *Store) UpdateLedger(ctx context.Context, l ir.Ledger) (ir.Ledger, error) {
	if l.Amount < 0 {
		return ir.Ledger{}, fmt.Errorf("update ledger %s: %w: negative amount %d", l.ID, ErrInvalidLedger, l.Amount)
	}

	var (
		result sql.Result
		err    error
	)
	if l.Amount == 0 {
		result, err = s.db.ExecContext(ctx, `DELETE FROM ledgers WHERE id = ?`, l.ID)
	} else {
		result, err = s.db.ExecContext(ctx, `UPDATE ledgers SET amount = ? WHERE id = ?`, l.Amount, l.ID)
	}
	if err != nil {
		return ir.Ledger{}, fmt.Errorf("update ledger %s: %w", l.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ir.Ledger{}, fmt.Errorf("update ledger %s: rows affected: %w", l.ID, err)
	}
	if rowsAffected == 0 {
		return ir.Ledger{}, fmt.Errorf("update ledger %s: %w", l.ID, ErrLedgerNotFound)
	}
	return l, nil
}

func validateLedger(l ir.Ledger) error {
	if l.IsSelf() {
		return fmt.Errorf("%w: %s cannot owe themselves", ErrInvalidLedger, l.Debtor)
	}
	if l.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidLedger, l.Amount)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (ir.Ledger, error) {
	var l ir.Ledger
	var debtor, creditor string
	if err := row.Scan(&l.ID, &debtor, &creditor, &l.Amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Ledger{}, ErrLedgerNotFound
		}
		return ir.Ledger{}, fmt.Errorf("scan ledger: %w", err)
	}
	l.Debtor = ir.PartyID(debtor)
	l.Creditor = ir.PartyID(creditor)
	return l, nil
}
