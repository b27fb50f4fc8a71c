// Package capture ingests raw thoughts from external surfaces into the
// pending-memory queue.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/store"
)

// DiscordCapture turns Discord messages into pending memories
type DiscordCapture struct {
	session   *discordgo.Session
	store     *store.Store
	channelID string
	botID     string
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// NewDiscordCapture creates a capture surface listening on one channel
// (or all channels when ChannelID is empty)
func NewDiscordCapture(cfg DiscordConfig, s *store.Store) (*DiscordCapture, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	d := &DiscordCapture{
		session:   session,
		store:     s,
		channelID: cfg.ChannelID,
	}

	session.AddHandler(d.handleMessage)

	// We only need message content
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return d, nil
}

// Start connects to Discord and begins capturing
func (d *DiscordCapture) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	d.botID = d.session.State.User.ID
	logging.Info("discord", "connected as %s", d.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord
func (d *DiscordCapture) Stop() error {
	return d.session.Close()
}

func (d *DiscordCapture) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from self
	if m.Author.ID == d.botID {
		return
	}
	if d.channelID != "" && m.ChannelID != d.channelID {
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	memory, err := d.store.InsertMemory(content, "discord", time.Now())
	if err != nil {
		logging.Warn("discord", "failed to capture message: %v", err)
		return
	}
	logging.Info("discord", "captured %s: %s", memory.UUID, logging.Truncate(content, 50))

	if err := s.MessageReactionAdd(m.ChannelID, m.ID, "🧠"); err != nil {
		logging.Debug("discord", "could not ack message: %v", err)
	}
}
