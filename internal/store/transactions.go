package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/splitledger/internal/ir"
)

// AppendTransaction records a transaction. The store assigns ID (when
// empty), Seq and CreatedAt and returns the stored value.
//
// Seq is a global logical clock: MAX(seq)+1 inside the insert statement, so
// concurrent appends cannot share a value.
func (s *Store) AppendTransaction(ctx context.Context, t ir.Transaction) (ir.Transaction, error) {
	if _, err := ir.ParseTransactionKind(string(t.Kind)); err != nil {
		return ir.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	if t.Amount <= 0 {
		return ir.Transaction{}, fmt.Errorf("append transaction: amount must be positive, got %d", t.Amount)
	}
	if t.ID == "" {
		t.ID = s.ids.Generate()
	}
	created := s.now()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions
		(id, kind, chat_id, initiator, receiver, amount, description, seq, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1, ? FROM transactions
		RETURNING seq
	`,
		t.ID,
		string(t.Kind),
		t.ChatID,
		string(t.Initiator),
		string(t.Receiver),
		t.Amount,
		t.Description,
		created,
	).Scan(&t.Seq)
	if err != nil {
		return ir.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}

	t.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return ir.Transaction{}, fmt.Errorf("append transaction: parse created_at: %w", err)
	}
	return t, nil
}

// ChatHistory returns the most recent transactions of a chat, newest first.
// A limit of zero or less returns the whole history.
func (s *Store) ChatHistory(ctx context.Context, chatID string, limit int) ([]ir.Transaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, chat_id, initiator, receiver, amount, description, seq, created_at
		FROM transactions
		WHERE chat_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	history := []ir.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return history, nil
}

func scanTransaction(row rowScanner) (ir.Transaction, error) {
	var (
		t                                  ir.Transaction
		kind, initiator, receiver, created string
	)
	if err := row.Scan(
		&t.ID,
		&kind,
		&t.ChatID,
		&initiator,
		&receiver,
		&t.Amount,
		&t.Description,
		&t.Seq,
		&created,
	); err != nil {
		return ir.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	k, err := ir.ParseTransactionKind(kind)
	if err != nil {
		return ir.Transaction{}, fmt.Errorf("scan transaction %s: %w", t.ID, err)
	}
	t.Kind = k
	t.Initiator = ir.PartyID(initiator)
	t.Receiver = ir.PartyID(receiver)

	t.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return ir.Transaction{}, fmt.Errorf("scan transaction %s: parse created_at: %w", t.ID, err)
	}
	return t, nil
}
