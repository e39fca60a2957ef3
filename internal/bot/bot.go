// Package bot turns chat messages into ledger changes and reply text.
//
// A Bot owns one store and serializes every command through a single
// goroutine (Run) fed by a FIFO queue, so settlement and simplification of a
// chat never interleave with another command. Handle is the synchronous
// entry point used by Run and by one-shot callers such as the CLI.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/events"
	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/message"
	"github.com/roach88/splitledger/internal/settle"
	"github.com/roach88/splitledger/internal/store"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("bot stopped")

// DefaultHistoryLimit is the /history length when none is given.
const DefaultHistoryLimit = 10

// Store is the subset of store.Store the bot needs.
type Store interface {
	settle.Store

	RegisterUser(ctx context.Context, id ir.PartyID, username string) (ir.User, error)
	User(ctx context.Context, id ir.PartyID) (ir.User, error)
	UserByUsername(ctx context.Context, username string) (ir.User, error)
	AddChatMember(ctx context.Context, chatID string, userID ir.PartyID) (bool, error)
	IsChatMember(ctx context.Context, chatID string, userID ir.PartyID) (bool, error)
	LoadGroupMembers(ctx context.Context, chatID string) ([]ir.User, error)
	LoadGroupLedgers(ctx context.Context, members []ir.PartyID) ([]ir.Ledger, error)
	ChatHistory(ctx context.Context, chatID string, limit int) ([]ir.Transaction, error)
}

// Incoming is one chat message.
type Incoming struct {
	ChatID   string     `json:"chat_id"`
	Sender   ir.PartyID `json:"sender"`
	Username string     `json:"username,omitempty"` // sender's current handle, may be empty
	Text     string     `json:"text"`
}

// Response is the outcome of a submitted message.
type Response struct {
	Text string
	Err  error
}

// Bot handles chat commands.
type Bot struct {
	store        Store
	simplifier   *engine.Simplifier
	publisher    events.Publisher
	logger       *slog.Logger
	clock        func() time.Time
	historyLimit int

	mu    sync.Mutex // held for the whole of Handle
	queue *requestQueue
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPublisher sets the event publisher. Default: events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(b *Bot) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithHistoryLimit sets the default /history length.
func WithHistoryLimit(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.historyLimit = n
		}
	}
}

// WithClock sets the clock used to stamp simplification events.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		if now != nil {
			b.clock = now
		}
	}
}

// New creates a Bot backed by s.
func New(s Store, opts ...Option) *Bot {
	b := &Bot{
		store:        s,
		publisher:    events.Nop{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:        time.Now,
		historyLimit: DefaultHistoryLimit,
		queue:        newRequestQueue(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.simplifier = engine.New(s, engine.WithLogger(b.logger))
	return b
}

// Run handles submitted messages one at a time until ctx is cancelled or
// Stop is called. Messages queued before Stop are still handled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot starting")

	for {
		if r, ok := b.queue.TryDequeue(); ok {
			text, err := b.Handle(ctx, r.incoming)
			r.reply <- Response{Text: text, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping: context cancelled")
			b.queue.Close()
			return ctx.Err()

		case <-b.queue.Wait():
			// The signal channel is closed with the queue, so a closed and
			// drained queue ends the loop here.
			if b.queue.Len() == 0 && b.queue.Closed() {
				b.logger.Info("bot stopping: queue closed")
				return nil
			}
		}
	}
}

// Submit queues a message for Run and waits for its reply.
func (b *Bot) Submit(ctx context.Context, in Incoming) (string, error) {
	r := request{incoming: in, reply: make(chan Response, 1)}
	if !b.queue.Enqueue(r) {
		return "", ErrStopped
	}

	select {
	case resp := <-r.reply:
		return resp.Text, resp.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stop closes the queue. Run returns once queued messages are handled.
func (b *Bot) Stop() {
	b.queue.Close()
}

// Handle parses and executes one message and returns the reply text.
//
// User mistakes (unknown command, bad amount, unregistered mention) produce
// a reply and a nil error. The error is reserved for store and engine
// failures. Text that is not a command yields an empty reply.
func (b *Bot) Handle(ctx context.Context, in Incoming) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, err := message.Parse(in.Text)
	if err != nil {
		if errors.Is(err, message.ErrNotACommand) {
			return "", nil
		}
		return parseErrorReply(err), nil
	}

	b.logger.Debug("handling command",
		"chat_id", in.ChatID,
		"sender", in.Sender,
		"command", msg.Command,
	)

	switch msg.Command {
	case message.CmdRegister:
		return b.register(ctx, in)
	case message.CmdLoan, message.CmdPay:
		return b.transfer(ctx, in, msg)
	case message.CmdBalance:
		return b.balance(ctx, in.ChatID)
	case message.CmdHistory:
		return b.history(ctx, in.ChatID, msg.Limit)
	case message.CmdSimplify:
		return b.simplify(ctx, in)
	case message.CmdHelp:
		return message.Usage, nil
	default:
		return parseErrorReply(message.ErrUnknownCommand), nil
	}
}

func (b *Bot) register(ctx context.Context, in Incoming) (string, error) {
	name := ir.NormalizeUsername(in.Username)
	if name == "" {
		return "You need a username to register.", nil
	}

	var reply string
	existing, err := b.store.User(ctx, in.Sender)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		reply = fmt.Sprintf("Registered @%s", name)
	case err != nil:
		return "", fmt.Errorf("register: %w", err)
	case existing.Username != name:
		reply = fmt.Sprintf("Updated username @%s to @%s", existing.Username, name)
	default:
		reply = fmt.Sprintf("@%s is already registered", name)
	}

	if _, err := b.store.RegisterUser(ctx, in.Sender, name); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return fmt.Sprintf("Username @%s is already taken.", name), nil
		}
		return "", fmt.Errorf("register: %w", err)
	}

	added, err := b.store.AddChatMember(ctx, in.ChatID, in.Sender)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	if added {
		reply += " and added to this chat"
		b.logger.Info("member joined", "chat_id", in.ChatID, "user_id", in.Sender, "username", name)
	}
	return reply + ".", nil
}

// requireMember returns a reply when the sender may not use ledger commands
// in the chat.
func (b *Bot) requireMember(ctx context.Context, in Incoming) (string, error) {
	ok, err := b.store.IsChatMember(ctx, in.ChatID, in.Sender)
	if err != nil {
		return "", err
	}
	if !ok {
		return "Please /register in this chat first.", nil
	}
	return "", nil
}

func (b *Bot) transfer(ctx context.Context, in Incoming, msg message.Message) (string, error) {
	if reply, err := b.requireMember(ctx, in); reply != "" || err != nil {
		return reply, err
	}
	kind, _ := msg.Kind()

	receivers := make([]ir.PartyID, 0, len(msg.Mentions))
	names := make(map[ir.PartyID]string, len(msg.Mentions)+1)
	for _, mention := range msg.Mentions {
		u, err := b.store.UserByUsername(ctx, mention)
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Sprintf("@%s is not registered.", mention), nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", msg.Command, err)
		}
		if u.ID == in.Sender {
			return selfTransferReply(kind), nil
		}
		member, err := b.store.IsChatMember(ctx, in.ChatID, u.ID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", msg.Command, err)
		}
		if !member {
			return fmt.Sprintf("@%s has not registered in this chat.", mention), nil
		}
		receivers = append(receivers, u.ID)
		names[u.ID] = u.Username
	}

	txs, err := settle.Transactions(settle.Request{
		Kind:        kind,
		ChatID:      in.ChatID,
		Initiator:   in.Sender,
		Receivers:   receivers,
		Amount:      msg.Amount,
		Description: msg.Description,
	})
	if err != nil {
		if errors.Is(err, settle.ErrSelfTransaction) {
			return selfTransferReply(kind), nil
		}
		return "", fmt.Errorf("%s: %w", msg.Command, err)
	}

	settled, err := settle.ApplyAll(ctx, b.store, txs)
	for _, st := range settled {
		b.publish(ctx, events.TransactionRecorded(st.Transaction))
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", msg.Command, err)
	}
	b.logger.Info("transactions recorded",
		"chat_id", in.ChatID,
		"kind", kind,
		"initiator", in.Sender,
		"count", len(settled),
		"amount", msg.Amount,
	)

	sender, err := b.store.User(ctx, in.Sender)
	if err != nil {
		return "", fmt.Errorf("%s: %w", msg.Command, err)
	}
	names[in.Sender] = sender.Username

	res, err := b.simplifyChat(ctx, in.ChatID, PassFull)
	if err != nil {
		return "", fmt.Errorf("%s: %w", msg.Command, err)
	}

	reply := formatTransfer(kind, msg, settled, names)
	if res.Report.Changed() {
		reply += "\n" + formatReport(res.Report)
	}
	return reply, nil
}

// Balance renders the chat's outstanding debts as /balance would.
func (b *Bot) Balance(ctx context.Context, chatID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(ctx, chatID)
}

// History renders the chat's last limit transactions as /history would.
// A non-positive limit means the configured default.
func (b *Bot) History(ctx context.Context, chatID string, limit int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history(ctx, chatID, limit)
}

func (b *Bot) balance(ctx context.Context, chatID string) (string, error) {
	members, err := b.store.LoadGroupMembers(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("balance: %w", err)
	}
	ledgers, err := b.store.LoadGroupLedgers(ctx, partyIDs(members))
	if err != nil {
		return "", fmt.Errorf("balance: %w", err)
	}
	return formatBalance(ledgers, usernames(members)), nil
}

func (b *Bot) history(ctx context.Context, chatID string, limit int) (string, error) {
	if limit <= 0 {
		limit = b.historyLimit
	}
	txs, err := b.store.ChatHistory(ctx, chatID, limit)
	if err != nil {
		return "", fmt.Errorf("history: %w", err)
	}
	members, err := b.store.LoadGroupMembers(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("history: %w", err)
	}
	return formatHistory(txs, usernames(members)), nil
}

func (b *Bot) simplify(ctx context.Context, in Incoming) (string, error) {
	if reply, err := b.requireMember(ctx, in); reply != "" || err != nil {
		return reply, err
	}
	res, err := b.simplifyChat(ctx, in.ChatID, PassFull)
	if err != nil {
		return "", fmt.Errorf("simplify: %w", err)
	}
	if !res.Report.Changed() {
		return "Nothing to simplify.", nil
	}

	members, err := b.store.LoadGroupMembers(ctx, in.ChatID)
	if err != nil {
		return "", fmt.Errorf("simplify: %w", err)
	}
	return formatReport(res.Report) + "\n" + formatBalance(res.Snapshot.ActiveLedgers(), usernames(members)), nil
}

// Pass selects which resolvers a chat simplification runs.
type Pass string

const (
	PassFull          Pass = "full"
	PassBidirectional Pass = "bidirectional"
	PassCycles        Pass = "cycles"
)

// ParsePass validates a pass name. The empty string means PassFull.
func ParsePass(s string) (Pass, error) {
	switch Pass(s) {
	case "", PassFull:
		return PassFull, nil
	case PassBidirectional, PassCycles:
		return Pass(s), nil
	}
	return "", fmt.Errorf("unknown pass %q: must be one of full, bidirectional, cycles", s)
}

// SimplifyChat loads a chat's members and ledgers, simplifies them through
// the store and publishes the outcome.
func (b *Bot) SimplifyChat(ctx context.Context, chatID string) (*engine.Result, error) {
	return b.SimplifyChatPass(ctx, chatID, PassFull)
}

// SimplifyChatPass is SimplifyChat restricted to one resolver.
func (b *Bot) SimplifyChatPass(ctx context.Context, chatID string, pass Pass) (*engine.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.simplifyChat(ctx, chatID, pass)
}

func (b *Bot) simplifyChat(ctx context.Context, chatID string, pass Pass) (*engine.Result, error) {
	members, err := b.store.LoadGroupMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ledgers, err := b.store.LoadGroupLedgers(ctx, partyIDs(members))
	if err != nil {
		return nil, err
	}

	var res *engine.Result
	switch pass {
	case PassBidirectional:
		res, err = b.simplifier.ResolveBidirectional(ctx, members, ledgers)
	case PassCycles:
		res, err = b.simplifier.ResolveCycles(ctx, members, ledgers)
	default:
		res, err = b.simplifier.Simplify(ctx, members, ledgers)
	}
	if err != nil {
		b.logger.Error("simplify failed", "chat_id", chatID, "pass", pass, "error", err)
		return nil, err
	}

	if res.Report.Changed() {
		b.logger.Info("ledgers simplified",
			"chat_id", chatID,
			"nettings", res.Report.Nettings,
			"cancellations", res.Report.Cancellations,
			"amount_cancelled", res.Report.AmountCancelled,
		)
		ev, err := events.LedgersSimplified(chatID, res, b.clock())
		if err != nil {
			b.logger.Warn("build simplify event", "chat_id", chatID, "error", err)
		} else {
			b.publish(ctx, ev)
		}
	}
	return res, nil
}

// publish delivers ev. Failures are logged and never fail the command.
func (b *Bot) publish(ctx context.Context, ev events.Event) {
	if err := b.publisher.Publish(ctx, ev); err != nil {
		b.logger.Warn("publish event failed",
			"type", ev.Type,
			"chat_id", ev.ChatID,
			"error", err,
		)
	}
}

func partyIDs(users []ir.User) []ir.PartyID {
	ids := make([]ir.PartyID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func usernames(users []ir.User) map[ir.PartyID]string {
	names := make(map[ir.PartyID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}
