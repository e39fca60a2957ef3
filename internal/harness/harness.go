package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/splitledger/internal/bot"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/fixture"
	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/store"
	"github.com/roach88/splitledger/internal/testutil"
)

// Harness is the scenario execution context.
// It runs one scenario against a fresh store with deterministic ids and
// timestamps.
type Harness struct {
	store      *store.Store
	bot        *bot.Bot
	simplifier *engine.Simplifier
	logger     *slog.Logger
	chat       string
	usernames  map[string]string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Import the group (inline or from a CUE fixture)
//  3. Send messages through the bot, checking expected replies
//  4. Run the scenario's pass against the stored ledgers
//  5. Evaluate assertions on the stored result
//
// The returned error is reserved for setup and store failures; failed
// expectations are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDs("id")),
		store.WithClock(testutil.NewStepClock(testutil.DefaultStart, time.Second).Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	group, err := scenarioGroup(scenario)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store:      st,
		bot:        bot.New(st, bot.WithLogger(logger), bot.WithClock(testutil.NewStepClock(testutil.DefaultStart, 0).Now)),
		simplifier: engine.New(st, engine.WithLogger(logger)),
		logger:     logger,
		chat:       group.ChatID,
		usernames:  make(map[string]string, len(group.Snapshot.Users)),
	}
	for _, u := range group.Snapshot.Users {
		h.usernames[string(u.ID)] = u.Username
	}

	ctx := context.Background()
	if err := fixture.Import(ctx, st, *group); err != nil {
		return nil, fmt.Errorf("failed to import group: %w", err)
	}

	result := NewResult()
	if err := h.executeMessages(ctx, scenario.Messages, result); err != nil {
		return nil, fmt.Errorf("failed to execute messages: %w", err)
	}

	if err := h.executePass(ctx, scenario.Mode, result); err != nil {
		return nil, fmt.Errorf("failed to execute %s pass: %w", modeOrDefault(scenario.Mode), err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// scenarioGroup builds the starting group from the fixture or the inline
// users and ledgers, and validates it like an import would.
func scenarioGroup(s *Scenario) (*fixture.Group, error) {
	if s.Fixture != "" {
		loaded, errs := fixture.Load(s.Fixture, fixture.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load fixture: %w", errs[0])
		}
		for _, g := range loaded.Groups {
			if g.Name == s.Group {
				if s.Chat != "" {
					g.ChatID = s.Chat
				}
				return &g, nil
			}
		}
		return nil, fmt.Errorf("fixture %s has no group %q", s.Fixture, s.Group)
	}

	g := &fixture.Group{
		Name:   s.Name,
		ChatID: s.Chat,
		Snapshot: ir.Snapshot{
			Users:   []ir.User{},
			Ledgers: []ir.Ledger{},
		},
	}
	if g.ChatID == "" {
		g.ChatID = DefaultChat
	}

	for _, u := range s.Users {
		g.Snapshot.Users = append(g.Snapshot.Users, ir.User{
			ID:       ir.PartyID(u.ID),
			Username: ir.NormalizeUsername(u.Username),
		})
	}
	if len(s.Users) == 0 {
		for _, id := range impliedParties(s) {
			g.Snapshot.Users = append(g.Snapshot.Users, ir.User{
				ID:       ir.PartyID(id),
				Username: strings.ToLower(id),
			})
		}
	}

	for _, l := range s.Ledgers {
		id := l.ID
		if id == "" {
			id = strings.ToLower(l.Debtor + l.Creditor)
		}
		g.Snapshot.Ledgers = append(g.Snapshot.Ledgers, ir.Ledger{
			ID:       id,
			Debtor:   ir.PartyID(l.Debtor),
			Creditor: ir.PartyID(l.Creditor),
			Amount:   l.Amount,
		})
	}

	if verrs := fixture.Validate(g); len(verrs) > 0 {
		return nil, fmt.Errorf("invalid group: %w", verrs[0])
	}
	return g, nil
}

// impliedParties returns every party named by ledgers or message senders,
// sorted.
func impliedParties(s *Scenario) []string {
	seen := make(map[string]bool)
	for _, l := range s.Ledgers {
		seen[l.Debtor] = true
		seen[l.Creditor] = true
	}
	for _, m := range s.Messages {
		seen[m.Sender] = true
	}

	parties := make([]string, 0, len(seen))
	for p := range seen {
		parties = append(parties, p)
	}
	sort.Strings(parties)
	return parties
}

// executeMessages sends each message through the bot and checks the
// expected reply. A mismatch is recorded and execution continues.
func (h *Harness) executeMessages(ctx context.Context, steps []MessageStep, result *Result) error {
	for i, step := range steps {
		username := step.Username
		if username == "" {
			username = h.usernames[step.Sender]
		}

		reply, err := h.bot.Handle(ctx, bot.Incoming{
			ChatID:   h.chat,
			Sender:   ir.PartyID(step.Sender),
			Username: username,
			Text:     step.Text,
		})
		if err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
		result.AddReply(step.Sender, step.Text, reply)

		if step.Expect != nil && reply != *step.Expect {
			result.AddError(fmt.Sprintf("messages[%d]: expected reply %q, got %q", i, *step.Expect, reply))
		}
		if step.ExpectContains != "" && !strings.Contains(reply, step.ExpectContains) {
			result.AddError(fmt.Sprintf("messages[%d]: expected reply containing %q, got %q", i, step.ExpectContains, reply))
		}
	}
	return nil
}

// executePass runs the scenario's pass on the group's stored ledgers and
// records the ledgers before and after.
func (h *Harness) executePass(ctx context.Context, mode string, result *Result) error {
	members, err := h.store.LoadGroupMembers(ctx, h.chat)
	if err != nil {
		return err
	}
	ids := make([]ir.PartyID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	before, err := h.store.LoadGroupLedgers(ctx, ids)
	if err != nil {
		return err
	}
	result.Before = before

	var res *engine.Result
	switch modeOrDefault(mode) {
	case ModeSimplify:
		res, err = h.simplifier.Simplify(ctx, members, before)
	case ModeBidirectional:
		res, err = h.simplifier.ResolveBidirectional(ctx, members, before)
	case ModeCycles:
		res, err = h.simplifier.ResolveCycles(ctx, members, before)
	case ModeNone:
		res = &engine.Result{}
	}
	if err != nil {
		return err
	}
	result.Report = res.Report
	h.logger.Debug("scenario pass finished",
		"mode", modeOrDefault(mode),
		"chat_id", h.chat,
		"ledgers_written", res.Report.LedgersWritten,
	)

	after, err := h.store.LoadGroupLedgers(ctx, ids)
	if err != nil {
		return err
	}
	result.Ledgers = after
	return nil
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return ModeSimplify
	}
	return mode
}
