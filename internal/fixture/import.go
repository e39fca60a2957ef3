package fixture

import (
	"context"
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
)

// Importer is the subset of store.Store that Import writes through.
type Importer interface {
	RegisterUser(ctx context.Context, id ir.PartyID, username string) (ir.User, error)
	AddChatMember(ctx context.Context, chatID string, userID ir.PartyID) (bool, error)
	PutLedger(ctx context.Context, l ir.Ledger) error
}

// Import registers every user of g, adds them to the group's chat in
// declaration order and writes its ledgers. Importing the same group twice
// leaves the store unchanged.
func Import(ctx context.Context, s Importer, g Group) error {
	for _, u := range g.Snapshot.Users {
		if _, err := s.RegisterUser(ctx, u.ID, u.Username); err != nil {
			return fmt.Errorf("import group %s: %w", g.Name, err)
		}
		if _, err := s.AddChatMember(ctx, g.ChatID, u.ID); err != nil {
			return fmt.Errorf("import group %s: %w", g.Name, err)
		}
	}
	for _, l := range g.Snapshot.Ledgers {
		if err := s.PutLedger(ctx, l); err != nil {
			return fmt.Errorf("import group %s: ledger %s: %w", g.Name, l.ID, err)
		}
	}
	return nil
}
