package discord

import "time"

// Presence is the payload for presence update events.
type Presence struct {
	GuildID   string    `json:"guildId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Status    string    `json:"status"` // online, idle, dnd, offline
	ClientWeb bool      `json:"clientWeb"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is the payload for message create events.
type Message struct {
	GuildID   string    `json:"guildId"`
	ChannelID string    `json:"channelId"`
	MessageID string    `json:"messageId"`
	AuthorID  string    `json:"authorId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is the payload for guild member add/remove events.
type Member struct {
	GuildID   string    `json:"guildId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Bot       bool      `json:"bot"`
	JoinedAt  time.Time `json:"joinedAt"`
	Timestamp time.Time `json:"timestamp"`
}
