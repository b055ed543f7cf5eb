package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subculture-collective/spywatcher/pkg/discord"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"),
		zerolog.New(os.Stdout).Level(zerolog.Disabled))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.RecordPresence(ctx, discord.Presence{
		GuildID: "g1", UserID: "u1", Username: "alice",
		Status: "online", ClientWeb: true, Timestamp: now,
	}))
	require.NoError(t, s.RecordMessage(ctx, discord.Message{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		AuthorID: "u1", Timestamp: now,
	}))
	require.NoError(t, s.RecordMember(ctx, discord.Member{
		GuildID: "g1", UserID: "u2", Username: "bob", Timestamp: now,
	}, "add"))
	require.NoError(t, s.RecordMember(ctx, discord.Member{
		GuildID: "g1", UserID: "u3", Timestamp: now,
	}, "remove"))

	counts, err := s.CountEventsSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Presence)
	assert.EqualValues(t, 1, counts.Messages)
	assert.EqualValues(t, 2, counts.Members)

	counts, err = s.CountEventsSince(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, counts.Presence)
	assert.EqualValues(t, 0, counts.Messages)
	assert.EqualValues(t, 0, counts.Members)
}

func TestStore_ZeroTimestampDefaultsToNow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordPresence(ctx, discord.Presence{
		GuildID: "g1", UserID: "u1", Status: "idle",
	}))

	counts, err := s.CountEventsSince(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Presence)
}

func TestStore_DBHandleUsable(t *testing.T) {
	s := openTestStore(t)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM presence_events").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "events.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
}
