package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Agent handles one user message and always returns reply text; failures
// come back as user-facing sentences, not errors.
type Agent interface {
	Handle(ctx context.Context, userID, text string) string
}

type Bot struct {
	api    *tgbotapi.BotAPI
	agent  Agent
	logger *zap.Logger
}

func New(token string, agent Agent, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:    api,
		agent:  agent,
		logger: logger,
	}, nil
}

func (b *Bot) Start() error {
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	// Channel posts and some service updates carry no sender.
	if message.From == nil {
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// Get content from message
	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		b.sendErrorMessage(message.Chat.ID, "I can only work with text messages.")
		return
	}

	userID := strconv.FormatInt(message.From.ID, 10)
	reply := b.agent.Handle(ctx, userID, content)
	b.sendMessage(message.Chat.ID, reply)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "reset":
		userID := strconv.FormatInt(message.From.ID, 10)
		b.sendMessage(message.Chat.ID, b.agent.Handle(ctx, userID, "reset"))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome! 📅
I'm your calendar assistant. I can create events, postpone them, update their
location or attendees, and answer questions about your schedule, the weather
and travel times.

Just tell me what you need, for example:
"schedule a team sync tomorrow at noon"

Use /help to see everything I understand.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/reset - Forget our conversation so far

Things you can say:
- "schedule a lunch with Sam tomorrow at noon"
- "postpone Demo 2 hours"
- "update location of Standup to Room 5"
- "add attendee Standup to alice@example.com"
- "where am I"
- anything else - I'll answer using your calendar, location and the weather`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
