package sink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/routineflow/routineflow/internal/config"
	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
)

var _ notify.Sink = (*Telegram)(nil)

// Telegram delivers reminders as bot messages with an inline keyboard: the
// notification's action buttons become callback buttons, and the default
// body-click action becomes a URL button pointing at the application.
type Telegram struct {
	id     string
	bot    *bot.Bot
	chatID int64
	appURL string

	mu       sync.Mutex
	onAction func(tag, actionID string)
	// messages maps a notification tag to the Telegram message showing it,
	// so Close can delete it.
	messages map[string]int
}

func NewTelegram(id string, cfg config.TelegramSinkConfig, appURL string) (*Telegram, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat_id %q: %w", cfg.ChatID, err)
	}

	t := &Telegram{
		id:       id,
		chatID:   chatID,
		appURL:   appURL,
		messages: make(map[string]int),
	}

	tgBot, err := bot.New(cfg.Token, bot.WithDefaultHandler(t.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = tgBot

	return t, nil
}

func (t *Telegram) ID() string { return t.id }

// Start runs the bot's long-polling loop and blocks until ctx is canceled.
func (t *Telegram) Start(ctx context.Context) error {
	t.bot.Start(ctx)
	return nil
}

func (t *Telegram) Stop(ctx context.Context) error {
	if t.bot != nil {
		t.bot.Close(ctx)
	}
	return nil
}

func (t *Telegram) OnAction(fn func(tag, actionID string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAction = fn
}

func (t *Telegram) Show(ctx context.Context, title string, opts notify.Options) error {
	text := title
	if opts.Body != "" {
		text += "\n" + opts.Body
	}

	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      t.chatID,
		Text:        text,
		ReplyMarkup: t.keyboard(opts),
	})
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}

	if opts.Tag != "" {
		t.mu.Lock()
		t.messages[opts.Tag] = msg.ID
		t.mu.Unlock()
	}
	return nil
}

func (t *Telegram) Close(ctx context.Context, tag string) error {
	t.mu.Lock()
	msgID, ok := t.messages[tag]
	if ok {
		delete(t.messages, tag)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}

	if _, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    t.chatID,
		MessageID: msgID,
	}); err != nil {
		return fmt.Errorf("delete telegram notification: %w", err)
	}
	return nil
}

func (t *Telegram) keyboard(opts notify.Options) models.ReplyMarkup {
	var row []models.InlineKeyboardButton
	for _, a := range opts.Actions {
		row = append(row, models.InlineKeyboardButton{
			Text:         a.Title,
			CallbackData: a.ID + "|" + opts.Tag,
		})
	}

	rows := [][]models.InlineKeyboardButton{}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if t.appURL != "" {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "Open RoutineFlow", URL: t.appURL},
		})
	}
	if len(rows) == 0 {
		return nil
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (t *Telegram) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		return
	}
	q := update.CallbackQuery

	// Always answer, or the client keeps its spinner.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
	}); err != nil {
		logs.CtxWarn(ctx, "[sink:telegram] answer callback failed: %v", err)
	}

	actionID, tag, ok := strings.Cut(q.Data, "|")
	if !ok || tag == "" {
		logs.CtxDebug(ctx, "[sink:telegram] unrecognized callback data %q", q.Data)
		return
	}

	t.mu.Lock()
	fn := t.onAction
	t.mu.Unlock()
	if fn != nil {
		fn(tag, actionID)
	}
}
