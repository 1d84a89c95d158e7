package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMaxLen is the Telegram message size limit.
const TelegramMaxLen = 4096

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Handler *Handler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewTelegramGateway(token string, handler *Handler) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramGateway{
		Bot:     bot,
		Handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", sender(update.Message), update.Message.Text)

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		go tg.Handler.Handle(tg.ctx, "telegram", tg, chatID, update.Message.Text, TelegramMaxLen)
	}
	return nil
}

// sender names who wrote msg. Channel and anonymous group posts carry no From.
func sender(msg *tgbotapi.Message) string {
	switch {
	case msg.From != nil:
		return msg.From.UserName
	case msg.SenderChat != nil:
		return msg.SenderChat.Title
	}
	return "unknown"
}

// Send tries Markdown first and falls back to plain text when Telegram rejects the markup.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := tg.Bot.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.cancel()
	tg.Bot.StopReceivingUpdates()
	return nil
}
