package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subculture-collective/spywatcher/internal/config"
	"github.com/subculture-collective/spywatcher/internal/logger"
	"github.com/subculture-collective/spywatcher/pkg/discord"
	"github.com/subculture-collective/spywatcher/pkg/extension"
)

type gatewayExt struct {
	ready    atomic.Int64
	presence atomic.Int64
	messages atomic.Int64
	members  atomic.Int64
}

func (g *gatewayExt) Init(ctx context.Context, ec *extension.Context) error { return nil }

func (g *gatewayExt) RegisterHooks(h *extension.Hooks) error {
	counters := map[extension.HookType]*atomic.Int64{
		extension.HookDiscordReady:             &g.ready,
		extension.HookDiscordPresenceUpdate:    &g.presence,
		extension.HookDiscordMessageCreate:     &g.messages,
		extension.HookDiscordGuildMemberAdd:    &g.members,
		extension.HookDiscordGuildMemberRemove: &g.members,
	}
	for hook, counter := range counters {
		c := counter
		_, err := h.Register(hook,
			func(ctx context.Context, hc *extension.HookContext, data any) (any, error) {
				c.Add(1)
				return nil, nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func newTestDaemon(t *testing.T, extID string) *Daemon {
	t.Helper()

	base := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = base
	cfg.Database.Path = filepath.Join(base, "events.db")
	cfg.Logging.Level = "error"
	cfg.Logging.File = filepath.Join(base, "spywatcher.log")
	cfg.Logging.Console = false
	cfg.Extensions.Dir = filepath.Join(base, "extensions")
	cfg.Extensions.DataDir = filepath.Join(base, "extdata")
	cfg.Metrics.Enabled = false

	extDir := filepath.Join(cfg.Extensions.Dir, extID)
	require.NoError(t, os.MkdirAll(extDir, 0o755))
	manifest := fmt.Sprintf(
		`{"id": %q, "name": "Gateway Ext", "version": "1.0.0", "author": "t", "permissions": ["discord-events"]}`,
		extID)
	require.NoError(t, os.WriteFile(
		filepath.Join(extDir, "manifest.json"), []byte(manifest), 0o644))

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, File: cfg.Logging.File})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	d, err := New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		d.manager.Shutdown(context.Background())
		d.closeResources()
	})
	return d
}

func TestDaemon_GatewayIngestion(t *testing.T) {
	ext := &gatewayExt{}
	extension.RegisterBuiltin("gateway-counter-ext", func() extension.Extension { return ext })
	d := newTestDaemon(t, "gateway-counter-ext")
	ctx := context.Background()

	d.HandleReady(ctx, "watcher-bot", []string{"g1"})

	require.NoError(t, d.HandlePresenceUpdate(ctx, discord.Presence{
		GuildID: "g1", UserID: "u1", Username: "alice", Status: "online",
	}))
	require.NoError(t, d.HandlePresenceUpdate(ctx, discord.Presence{
		GuildID: "g1", UserID: "u1", Username: "alice", Status: "idle",
	}))
	require.NoError(t, d.HandleMessageCreate(ctx, discord.Message{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1", AuthorID: "u1",
	}))
	require.NoError(t, d.HandleGuildMemberAdd(ctx, discord.Member{
		GuildID: "g1", UserID: "u2", Username: "bob",
	}))
	require.NoError(t, d.HandleGuildMemberRemove(ctx, discord.Member{
		GuildID: "g1", UserID: "u2", Username: "bob",
	}))

	assert.Equal(t, int64(1), ext.ready.Load())
	assert.Equal(t, int64(2), ext.presence.Load())
	assert.Equal(t, int64(1), ext.messages.Load())
	assert.Equal(t, int64(2), ext.members.Load())

	counts, err := d.store.CountEventsSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Presence)
	assert.Equal(t, int64(1), counts.Messages)
	assert.Equal(t, int64(2), counts.Members)
}
