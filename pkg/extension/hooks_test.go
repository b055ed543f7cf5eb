package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookRegistry_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("empty registry passes data through", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		out := r.Execute(ctx, HookDiscordMessageCreate, "payload")
		assert.Equal(t, "payload", out)
	})

	t.Run("handlers run in registration order as a fold", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		_, err := r.Register("a", HookAnalyticsBeforeCalculate, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return data.(string) + "-a", nil
		})
		require.NoError(t, err)
		_, err = r.Register("b", HookAnalyticsBeforeCalculate, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return data.(string) + "-b", nil
		})
		require.NoError(t, err)

		out := r.Execute(ctx, HookAnalyticsBeforeCalculate, "start")
		assert.Equal(t, "start-a-b", out)
	})

	t.Run("nil result keeps accumulator", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		var seen any
		_, err := r.Register("obs", HookDiscordReady, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			seen = data
			return nil, nil
		})
		require.NoError(t, err)

		out := r.Execute(ctx, HookDiscordReady, 42)
		assert.Equal(t, 42, out)
		assert.Equal(t, 42, seen)
	})

	t.Run("handler error is isolated and fold continues", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		_, _ = r.Register("a", HookAPIRequest, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return data.(int) + 1, nil
		})
		_, _ = r.Register("b", HookAPIRequest, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return nil, errors.New("broken handler")
		})
		_, _ = r.Register("c", HookAPIRequest, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return data.(int) + 10, nil
		})

		out := r.Execute(ctx, HookAPIRequest, 0)
		assert.Equal(t, 11, out)
	})

	t.Run("handler panic is isolated", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		_, _ = r.Register("a", HookWebsocketConnect, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			panic("oops")
		})
		_, _ = r.Register("b", HookWebsocketConnect, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return "survived", nil
		})

		out := r.Execute(ctx, HookWebsocketConnect, "in")
		assert.Equal(t, "survived", out)
	})

	t.Run("hook context names the owning extension", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		var gotExt string
		var gotHook HookType
		_, _ = r.Register("owner-ext", HookDiscordReady, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			gotExt = hc.Extension
			gotHook = hc.Hook
			return nil, nil
		})

		r.Execute(ctx, HookDiscordReady, nil)
		assert.Equal(t, "owner-ext", gotExt)
		assert.Equal(t, HookDiscordReady, gotHook)
	})
}

func TestHookRegistry_Register(t *testing.T) {
	r := NewHookRegistry(testLogger(), nil)

	t.Run("rejects unknown hook type", func(t *testing.T) {
		_, err := r.Register("x", HookType("no-such-hook"), func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return nil, nil
		})
		require.Error(t, err)
	})

	t.Run("rejects nil handler", func(t *testing.T) {
		_, err := r.Register("x", HookDiscordReady, nil)
		require.Error(t, err)
	})
}

func TestHookRegistry_Unregister(t *testing.T) {
	ctx := context.Background()

	t.Run("removes by identity, duplicates unaffected", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		fn := func(ctx context.Context, hc *HookContext, data any) (any, error) {
			return data.(int) + 1, nil
		}
		reg1, _ := r.Register("x", HookAPIResponse, fn)
		_, _ = r.Register("x", HookAPIResponse, fn)

		assert.Equal(t, 2, r.HandlerCount(HookAPIResponse))
		r.Unregister(reg1)
		assert.Equal(t, 1, r.HandlerCount(HookAPIResponse))
		assert.Equal(t, 1, r.Execute(ctx, HookAPIResponse, 0))

		// unknown registration is a no-op
		r.Unregister(reg1)
		assert.Equal(t, 1, r.HandlerCount(HookAPIResponse))
	})

	t.Run("unregister extension removes everything it owns", func(t *testing.T) {
		r := NewHookRegistry(testLogger(), nil)
		noop := func(ctx context.Context, hc *HookContext, data any) (any, error) { return nil, nil }
		_, _ = r.Register("mine", HookDiscordReady, noop)
		_, _ = r.Register("mine", HookAPIRequest, noop)
		_, _ = r.Register("other", HookAPIRequest, noop)

		removed := r.UnregisterExtension("mine")
		assert.Equal(t, 2, removed)
		assert.Equal(t, 0, r.HandlerCount(HookDiscordReady))
		assert.Equal(t, 1, r.HandlerCount(HookAPIRequest))
	})
}

func TestHooks_PermissionGating(t *testing.T) {
	r := NewHookRegistry(testLogger(), nil)
	noop := func(ctx context.Context, hc *HookContext, data any) (any, error) { return nil, nil }

	t.Run("discord hooks need discord-events", func(t *testing.T) {
		h := newHooks(r, NewPermissionSet("gated", nil), "gated")
		_, err := h.Register(HookDiscordPresenceUpdate, noop)

		var perr *PermissionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, PermissionDiscordEvents, perr.Permission)
		assert.Equal(t, 0, r.HandlerCount(HookDiscordPresenceUpdate))
	})

	t.Run("non-discord hooks are open", func(t *testing.T) {
		h := newHooks(r, NewPermissionSet("gated", nil), "gated")
		_, err := h.Register(HookAnalyticsAfterCalculate, noop)
		require.NoError(t, err)
	})

	t.Run("close drops all owned registrations", func(t *testing.T) {
		perms := NewPermissionSet("closer", []Permission{PermissionDiscordEvents})
		h := newHooks(r, perms, "closer")
		_, err := h.Register(HookDiscordMessageCreate, noop)
		require.NoError(t, err)
		_, err = h.Register(HookAPIRequest, noop)
		require.NoError(t, err)

		h.close()
		assert.Equal(t, 0, r.HandlerCount(HookDiscordMessageCreate))
	})
}
