package gateway

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"
)

// DiscordMaxLen is the Discord message size limit.
const DiscordMaxLen = 2000

type DiscordGateway struct {
	Session *discordgo.Session
	Handler *Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDiscordGateway(token string, handler *Handler) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	dg := &DiscordGateway{
		Session: s,
		Handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	log.Printf("[%s] %s", m.Author.Username, m.Content)
	go dg.Handler.Handle(dg.ctx, "discord", dg, m.ChannelID, m.Content, DiscordMaxLen)
}

// Start opens the websocket and blocks until Stop.
func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return err
	}
	if u := dg.Session.State.User; u != nil {
		log.Printf("Authorized on account %s", u.Username)
	}
	<-dg.done
	return nil
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	dg.cancel()
	select {
	case <-dg.done:
	default:
		close(dg.done)
	}
	return dg.Session.Close()
}
