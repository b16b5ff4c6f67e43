package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

const winEmbedColor = 0xF5A623

// SessionHandler is the part of a Discord session the notifier needs
type SessionHandler interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// NewSession creates a bot session for posting announcements
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	return s, nil
}

// Ensure discordgo.Session implements SessionHandler
var _ SessionHandler = (*discordgo.Session)(nil)

// DiscordNotifier posts win announcements to Discord channels
type DiscordNotifier struct {
	session        SessionHandler
	defaultChannel string

	mu           sync.RWMutex
	clubChannels map[string]string
}

// NewDiscordNotifier creates a notifier posting to defaultChannel unless a club has its own channel
func NewDiscordNotifier(session SessionHandler, defaultChannel string) *DiscordNotifier {
	return &DiscordNotifier{
		session:        session,
		defaultChannel: defaultChannel,
		clubChannels:   make(map[string]string),
	}
}

// SetClubChannel routes a club's announcements to its own channel
func (n *DiscordNotifier) SetClubChannel(clubID, channelID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if channelID == "" {
		delete(n.clubChannels, clubID)
		return
	}
	n.clubChannels[clubID] = channelID
}

func (n *DiscordNotifier) channelFor(clubID string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if channel, ok := n.clubChannels[clubID]; ok {
		return channel
	}
	return n.defaultChannel
}

// NotifyWin implements Notifier
func (n *DiscordNotifier) NotifyWin(ctx context.Context, event WinEvent) error {
	channel := n.channelFor(event.ClubID)
	if channel == "" {
		return nil
	}

	if _, err := n.session.ChannelMessageSendEmbed(channel, winEmbed(event), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error posting win to discord channel %s: %w", channel, err)
	}
	return nil
}

// Close closes the underlying session
func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}

func winEmbed(event WinEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎰 " + event.PrizeName,
		Description: event.PlayerDisplay,
		Color:       winEmbedColor,
	}

	if len(event.Recent) > 0 {
		lines := make([]string, 0, len(event.Recent))
		for i := len(event.Recent) - 1; i >= 0; i-- {
			lines = append(lines, event.Recent[i].Text)
		}
		embed.Fields = []*discordgo.MessageEmbedField{{
			Name:  "Последние выигрыши",
			Value: strings.Join(lines, "\n"),
		}}
	}
	return embed
}
