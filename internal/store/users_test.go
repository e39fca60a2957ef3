package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/ir"
)

func TestRegisterUser_CreatesAndUpdates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u, err := s.RegisterUser(ctx, "100", "@alice")
	require.NoError(t, err)
	assert.Equal(t, ir.User{ID: "100", Username: "alice"}, u)

	// Renaming keeps the id.
	u, err = s.RegisterUser(ctx, "100", "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)

	got, err := s.User(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Username)

	_, err = s.UserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterUser_UsernameTaken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "1", "bob")
	require.NoError(t, err)

	_, err = s.RegisterUser(ctx, "2", "@bob")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterUser_RequiresName(t *testing.T) {
	s := createTestStore(t)
	_, err := s.RegisterUser(context.Background(), "1", "@")
	assert.Error(t, err)
}

func TestUserByUsername_Normalizes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "7", "jos\u00e9")
	require.NoError(t, err)

	u, err := s.UserByUsername(ctx, "@jose\u0301")
	require.NoError(t, err)
	assert.Equal(t, ir.PartyID("7"), u.ID)
}

func TestUser_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.User(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddChatMember(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "a", "alice")
	require.NoError(t, err)

	added, err := s.AddChatMember(ctx, "chat-1", "a")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddChatMember(ctx, "chat-1", "a")
	require.NoError(t, err)
	assert.False(t, added, "second add is a no-op")

	ok, err := s.IsChatMember(ctx, "chat-1", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsChatMember(ctx, "chat-2", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddChatMember_UnknownUser(t *testing.T) {
	s := createTestStore(t)
	_, err := s.AddChatMember(context.Background(), "chat-1", "ghost")
	assert.Error(t, err, "foreign key must reject unknown users")
}

func TestLoadGroupMembers_JoinOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChat(t, s, "c1", "carol", "alice", "bob")
	seedChat(t, s, "c2", "dave")

	members, err := s.LoadGroupMembers(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, ir.PartyID("carol"), members[0].ID)
	assert.Equal(t, ir.PartyID("alice"), members[1].ID)
	assert.Equal(t, ir.PartyID("bob"), members[2].ID)

	empty, err := s.LoadGroupMembers(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListChats(t *testing.T) {
	s := createTestStore(t)
	seedChat(t, s, "b-chat", "alice")
	seedChat(t, s, "a-chat", "bob")

	chats, err := s.ListChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-chat", "b-chat"}, chats)
}
