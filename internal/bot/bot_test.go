package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/events"
	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/message"
	"github.com/roach88/splitledger/internal/store"
	"github.com/roach88/splitledger/internal/testutil"
)

const chat = "c1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bot.db"),
		store.WithIDGenerator(testutil.NewSequentialIDs("id")),
		store.WithClock(testutil.NewStepClock(testutil.DefaultStart, 0).Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestBot returns a bot whose chat c1 has alice (u1), bob (u2) and carol
// (u3) registered.
func newTestBot(t *testing.T, opts ...Option) (*Bot, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	b := New(s, opts...)
	for i, name := range []string{"alice", "bob", "carol"} {
		send(t, b, ir.PartyID("u"+string(rune('1'+i))), name, "/register")
	}
	return b, s
}

func send(t *testing.T, b *Bot, sender ir.PartyID, username, text string) string {
	t.Helper()
	reply, err := b.Handle(context.Background(), Incoming{
		ChatID:   chat,
		Sender:   sender,
		Username: username,
		Text:     text,
	})
	require.NoError(t, err)
	return reply
}

func TestHandle_NotACommand(t *testing.T) {
	b := New(newTestStore(t))
	assert.Empty(t, send(t, b, "u1", "alice", "hello everyone"))
}

func TestHandle_Help(t *testing.T) {
	b := New(newTestStore(t))
	assert.Equal(t, message.Usage, send(t, b, "u1", "alice", "/help"))
	assert.Equal(t, message.Usage, send(t, b, "u1", "alice", "/help@splitledger_bot"))
}

func TestHandle_Register(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	ctx := context.Background()

	assert.Equal(t, "You need a username to register.", send(t, b, "u1", "", "/register"))
	assert.Equal(t, "Registered @alice and added to this chat.", send(t, b, "u1", "alice", "/register"))
	assert.Equal(t, "@alice is already registered.", send(t, b, "u1", "alice", "/register"))
	assert.Equal(t, "Updated username @alice to @ally.", send(t, b, "u1", "@ally", "/register"))
	assert.Equal(t, "Username @ally is already taken.", send(t, b, "u2", "ally", "/register"))

	u, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ally", u.Username)

	_, err = s.User(ctx, "u2")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	reply, err := b.Handle(ctx, Incoming{ChatID: "c2", Sender: "u1", Username: "ally", Text: "/register"})
	require.NoError(t, err)
	assert.Equal(t, "@ally is already registered and added to this chat.", reply)
}

func TestHandle_ParseErrors(t *testing.T) {
	b, _ := newTestBot(t)

	tests := []struct {
		text string
		want string
	}{
		{"/frobnicate", "Unknown command. Send /help for the list of commands."},
		{"/loan", "Amount not specified."},
		{"/loan abc @bob", "Invalid amount. Use a positive number with at most two decimals, like 12.50."},
		{"/loan 1.234 @bob", "Invalid amount. Use a positive number with at most two decimals, like 12.50."},
		{"/loan 5 lunch", "Mention at least one person with @username."},
		{"/history many", "History limit must be a positive whole number."},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, send(t, b, "u1", "alice", tt.text))
		})
	}
}

func TestHandle_TransferRejections(t *testing.T) {
	b, s := newTestBot(t)
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "u4", "dave")
	require.NoError(t, err)
	_, err = s.AddChatMember(ctx, "c2", "u4")
	require.NoError(t, err)

	assert.Equal(t, "Please /register in this chat first.", send(t, b, "u9", "zoe", "/loan 10 @bob"))
	assert.Equal(t, "@zed is not registered.", send(t, b, "u1", "alice", "/loan 10 @bob @zed"))
	assert.Equal(t, "You cannot loan money to yourself.", send(t, b, "u1", "alice", "/loan 10 @alice"))
	assert.Equal(t, "You cannot pay yourself.", send(t, b, "u1", "alice", "/pay 10 @bob @alice"))
	assert.Equal(t, "@dave has not registered in this chat.", send(t, b, "u1", "alice", "/loan 10 @dave"))

	ledgers, err := s.LoadGroupLedgers(ctx, []ir.PartyID{"u1", "u2", "u3", "u4"})
	require.NoError(t, err)
	assert.Empty(t, ledgers, "rejected commands must not touch ledgers")
}

func TestHandle_LoanSplitsEqually(t *testing.T) {
	b, _ := newTestBot(t)

	reply := send(t, b, "u1", "alice", "/loan 10 @bob @carol pizza night")
	assert.Equal(t, "@alice lent 10.00 for pizza night\n  @bob 5.00\n  @carol 5.00", reply)

	assert.Equal(t, "@bob owes @alice 5.00\n@carol owes @alice 5.00", send(t, b, "u2", "bob", "/balance"))
}

func TestHandle_LoanLeftoverGoesToFirstMentions(t *testing.T) {
	b, _ := newTestBot(t)

	reply := send(t, b, "u1", "alice", "/loan 10,01 @carol @bob")
	assert.Equal(t, "@alice lent 10.01\n  @carol 5.01\n  @bob 5.00", reply)
}

func TestHandle_PayFullAmountEach(t *testing.T) {
	b, _ := newTestBot(t)

	reply := send(t, b, "u1", "alice", "/pay 5 @bob @carol")
	assert.Equal(t, "@alice paid 5.00 each\n  @bob 5.00\n  @carol 5.00", reply)

	assert.Equal(t, "@bob owes @alice 5.00\n@carol owes @alice 5.00", send(t, b, "u1", "alice", "/balance"))
}

func TestHandle_LoanNetsMutualDebt(t *testing.T) {
	b, _ := newTestBot(t)

	send(t, b, "u1", "alice", "/loan 10 @bob")
	reply := send(t, b, "u2", "bob", "/loan 4 @alice")
	assert.Equal(t, "@bob lent 4.00\n  @alice 4.00\n"+
		"Debts simplified: 1 mutual netted, 0 cycles cancelled, 8.00 cleared.", reply)

	assert.Equal(t, "@bob owes @alice 6.00", send(t, b, "u3", "carol", "/balance"))
}

func TestHandle_LoanCancelsCycle(t *testing.T) {
	b, s := newTestBot(t)

	send(t, b, "u1", "alice", "/loan 10 @bob")
	send(t, b, "u2", "bob", "/loan 10 @carol")
	reply := send(t, b, "u3", "carol", "/loan 10 @alice")
	assert.Contains(t, reply, "0 mutual netted, 1 cycles cancelled, 30.00 cleared.")

	assert.Equal(t, "No outstanding debts.", send(t, b, "u1", "alice", "/balance"))

	ledgers, err := s.LoadGroupLedgers(context.Background(), []ir.PartyID{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Empty(t, ledgers, "cancelled ledgers are deleted from the store")
}

func TestHandle_History(t *testing.T) {
	b, _ := newTestBot(t)

	assert.Equal(t, "No transactions yet.", send(t, b, "u1", "alice", "/history"))

	send(t, b, "u1", "alice", "/loan 10 @bob pizza")
	send(t, b, "u1", "alice", "/pay 5 @carol")

	assert.Equal(t, "#2 @alice paid @carol 5.00\n#1 @alice lent @bob 10.00 (pizza)",
		send(t, b, "u2", "bob", "/history"))
	assert.Equal(t, "#2 @alice paid @carol 5.00", send(t, b, "u2", "bob", "/history 1"))
}

func TestHandle_HistoryDefaultLimit(t *testing.T) {
	b, _ := newTestBot(t, WithHistoryLimit(1))

	send(t, b, "u1", "alice", "/loan 10 @bob")
	send(t, b, "u1", "alice", "/loan 20 @bob")

	assert.Equal(t, "#2 @alice lent @bob 20.00", send(t, b, "u1", "alice", "/history"))
}

func TestHandle_Simplify(t *testing.T) {
	b, s := newTestBot(t)
	ctx := context.Background()

	assert.Equal(t, "Please /register in this chat first.", send(t, b, "u9", "zoe", "/simplify"))
	assert.Equal(t, "Nothing to simplify.", send(t, b, "u1", "alice", "/simplify"))

	// Ledgers written behind the bot's back are only netted on demand.
	_, err := s.InsertLedger(ctx, "u2", "u1", 1000)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u1", "u2", 400)
	require.NoError(t, err)

	reply := send(t, b, "u1", "alice", "/simplify")
	assert.Equal(t, "Debts simplified: 1 mutual netted, 0 cycles cancelled, 8.00 cleared.\n"+
		"@bob owes @alice 6.00", reply)
	assert.Equal(t, "Nothing to simplify.", send(t, b, "u1", "alice", "/simplify"))
}

func TestHandle_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{}
	b, _ := newTestBot(t, WithPublisher(pub))

	send(t, b, "u1", "alice", "/loan 10 @bob @carol")
	assert.Equal(t, []events.Type{
		events.TypeTransactionRecorded,
		events.TypeTransactionRecorded,
	}, pub.types())

	send(t, b, "u2", "bob", "/loan 2 @alice")
	types := pub.types()
	require.Len(t, types, 4)
	assert.Equal(t, events.TypeTransactionRecorded, types[2])
	assert.Equal(t, events.TypeLedgersSimplified, types[3])

	pub.mu.Lock()
	last := pub.events[3]
	pub.mu.Unlock()
	assert.Equal(t, chat, last.ChatID)
	require.NotNil(t, last.Report)
	assert.Equal(t, 1, last.Report.Nettings)
	assert.NotEmpty(t, last.LedgersDigest)
}

func TestHandle_PublishFailureDoesNotFailCommand(t *testing.T) {
	var logs bytes.Buffer
	pub := &recordingPublisher{err: errors.New("broker down")}
	b, _ := newTestBot(t,
		WithPublisher(pub),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	reply := send(t, b, "u1", "alice", "/loan 10 @bob")
	assert.Equal(t, "@alice lent 10.00\n  @bob 10.00", reply)
	assert.Contains(t, logs.String(), "publish event failed")
	assert.Contains(t, logs.String(), "broker down")
}

func TestSimplifyChat(t *testing.T) {
	b, s := newTestBot(t)
	ctx := context.Background()

	_, err := s.InsertLedger(ctx, "u1", "u2", 500)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u2", "u3", 500)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u3", "u1", 300)
	require.NoError(t, err)

	res, err := b.SimplifyChat(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Cancellations)

	ledgers, err := s.LoadGroupLedgers(ctx, []ir.PartyID{"u1", "u2", "u3"})
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, int64(200), ledgers[0].Amount)
	assert.Equal(t, int64(200), ledgers[1].Amount)
}

func TestSimplifyChatPass(t *testing.T) {
	b, s := newTestBot(t)
	ctx := context.Background()

	_, err := s.InsertLedger(ctx, "u1", "u2", 500)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u2", "u1", 200)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u2", "u3", 100)
	require.NoError(t, err)
	_, err = s.InsertLedger(ctx, "u3", "u1", 100)
	require.NoError(t, err)

	res, err := b.SimplifyChatPass(ctx, chat, PassCycles)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Report.Nettings)
	assert.Equal(t, 1, res.Report.Cancellations)

	res, err = b.SimplifyChatPass(ctx, chat, PassBidirectional)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Nettings)

	ledgers, err := s.LoadGroupLedgers(ctx, []ir.PartyID{"u1", "u2", "u3"})
	require.NoError(t, err)
	require.Len(t, ledgers, 1)
	assert.Equal(t, ir.PartyID("u1"), ledgers[0].Debtor)
	assert.Equal(t, int64(200), ledgers[0].Amount)
}

func TestParsePass(t *testing.T) {
	for in, want := range map[string]Pass{
		"":              PassFull,
		"full":          PassFull,
		"bidirectional": PassBidirectional,
		"cycles":        PassCycles,
	} {
		got, err := ParsePass(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParsePass("everything")
	assert.Error(t, err)
}

func TestBalanceAndHistory(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	out, err := b.Balance(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, "No outstanding debts.", out)

	send(t, b, "u1", "alice", "/loan 4 @bob @carol lunch")

	out, err = b.Balance(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, "@bob owes @alice 2.00\n@carol owes @alice 2.00", out)

	out, err = b.History(ctx, chat, 1)
	require.NoError(t, err)
	assert.Equal(t, "#2 @alice lent @carol 2.00 (lunch)", out)

	out, err = b.History(ctx, chat, 0)
	require.NoError(t, err)
	assert.Equal(t, "#2 @alice lent @carol 2.00 (lunch)\n#1 @alice lent @bob 2.00 (lunch)", out)
}

func TestRun_SubmitAndStop(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	reply, err := b.Submit(ctx, Incoming{ChatID: chat, Sender: "u1", Username: "alice", Text: "/loan 3 @bob"})
	require.NoError(t, err)
	assert.Equal(t, "@alice lent 3.00\n  @bob 3.00", reply)

	reply, err = b.Submit(ctx, Incoming{ChatID: chat, Sender: "u2", Username: "bob", Text: "/balance"})
	require.NoError(t, err)
	assert.Equal(t, "@bob owes @alice 3.00", reply)

	b.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = b.Submit(ctx, Incoming{ChatID: chat, Sender: "u1", Text: "/help"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRun_ContextCancelled(t *testing.T) {
	b := New(newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ConcurrentSubmitsAreSerialized(t *testing.T) {
	b, s := newTestBot(t)
	ctx := context.Background()
	go b.Run(ctx)
	t.Cleanup(b.Stop)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Submit(ctx, Incoming{ChatID: chat, Sender: "u1", Username: "alice", Text: "/loan 1 @bob"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	l, err := s.LedgerBetween(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(n*100), l.Amount)
}
