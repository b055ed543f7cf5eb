package daemon

import (
	"context"

	"github.com/subculture-collective/spywatcher/pkg/discord"
	"github.com/subculture-collective/spywatcher/pkg/extension"
)

// Gateway event ingestion. A connected Discord client calls these as
// events arrive; each one records the event, dispatches the matching
// hook so extensions can observe or transform it, and pushes the final
// payload to websocket subscribers. The stored row always carries the
// raw gateway data, not the hook output.

// HandleReady announces the gateway session to extensions.
func (d *Daemon) HandleReady(ctx context.Context, username string, guildIDs []string) {
	d.manager.ExecuteHook(ctx, extension.HookDiscordReady, map[string]any{
		"username": username,
		"guilds":   guildIDs,
	})
}

// HandlePresenceUpdate ingests a presence change.
func (d *Daemon) HandlePresenceUpdate(ctx context.Context, p discord.Presence) error {
	if err := d.store.RecordPresence(ctx, p); err != nil {
		return err
	}
	out := d.manager.ExecuteHook(ctx, extension.HookDiscordPresenceUpdate, p)
	d.hub.Broadcast("presence-update", out)
	return nil
}

// HandleMessageCreate ingests a message create event.
func (d *Daemon) HandleMessageCreate(ctx context.Context, m discord.Message) error {
	if err := d.store.RecordMessage(ctx, m); err != nil {
		return err
	}
	out := d.manager.ExecuteHook(ctx, extension.HookDiscordMessageCreate, m)
	d.hub.Broadcast("message-create", out)
	return nil
}

// HandleGuildMemberAdd ingests a member join.
func (d *Daemon) HandleGuildMemberAdd(ctx context.Context, m discord.Member) error {
	if err := d.store.RecordMember(ctx, m, "join"); err != nil {
		return err
	}
	out := d.manager.ExecuteHook(ctx, extension.HookDiscordGuildMemberAdd, m)
	d.hub.Broadcast("member-add", out)
	return nil
}

// HandleGuildMemberRemove ingests a member leave.
func (d *Daemon) HandleGuildMemberRemove(ctx context.Context, m discord.Member) error {
	if err := d.store.RecordMember(ctx, m, "leave"); err != nil {
		return err
	}
	out := d.manager.ExecuteHook(ctx, extension.HookDiscordGuildMemberRemove, m)
	d.hub.Broadcast("member-remove", out)
	return nil
}
