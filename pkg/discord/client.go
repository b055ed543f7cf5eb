// Package discord declares the consumed surface of the Discord gateway
// client. The gateway connection itself lives outside this codebase; the
// runtime only holds a handle and forwards gateway events into the hook
// pipeline.
package discord

import "context"

// Client is the handle granted to extensions holding the discord-client
// permission. Implementations wrap a live gateway session.
type Client interface {
	// Username returns the bot account's username.
	Username() string

	// GuildIDs returns the ids of all guilds the bot is a member of.
	GuildIDs() []string

	// SendMessage sends a text message to a channel.
	SendMessage(ctx context.Context, channelID, content string) error

	// Latency returns the most recent gateway heartbeat latency in
	// milliseconds.
	Latency() int64
}
