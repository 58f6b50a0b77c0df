package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/core/bot"
)

// Submitter は受信イベントを受け付けます。
type Submitter interface {
	Submit(ctx context.Context, ev bot.Event)
}

// Runner はロングポーリングで更新を受信し、イベントに変換して Submitter に渡します。
type Runner struct {
	api         API
	files       fileFetcher
	inbox       Submitter
	pollTimeout int
	logger      *zap.Logger
}

// NewRunner は Runner を生成します。httpClient は画像のダウンロードに使います。
func NewRunner(api API, httpClient *http.Client, inbox Submitter, pollTimeout int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Runner{
		api:         api,
		files:       fileFetcher{api: api, http: httpClient},
		inbox:       inbox,
		pollTimeout: pollTimeout,
		logger:      logger.Named("telegram_runner"),
	}
}

// Run は ctx がキャンセルされるまで更新を受信します。更新は受信順に 1 つのゴルーチンから投入します。
func (r *Runner) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.pollTimeout
	updates := r.api.GetUpdatesChan(u)

	r.logger.Info("receiving updates", zap.Int("poll_timeout", r.pollTimeout))
	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := r.toEvent(update)
			if !ok {
				continue
			}
			r.inbox.Submit(ctx, ev)
		}
	}
}

func (r *Runner) toEvent(update tgbotapi.Update) (bot.Event, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return bot.Event{}, false
	}
	ev := bot.Event{ExternalID: strconv.FormatInt(msg.Chat.ID, 10)}

	switch {
	case msg.IsCommand():
		ev.Kind = commandKind(msg.Command())
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Kind = bot.KindImage
		ev.Image = r.files.source(largest.FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		ev.Kind = bot.KindImage
		ev.Image = r.files.source(msg.Document.FileID)
	case msg.Text != "":
		ev.Kind = bot.KindText
		ev.Text = msg.Text
	default:
		ev.Kind = bot.KindHelp
	}
	return ev, true
}

func commandKind(command string) bot.Kind {
	switch strings.ToLower(command) {
	case "start":
		return bot.KindStart
	case "cancel":
		return bot.KindCancel
	case "stats":
		return bot.KindStats
	case "unread":
		return bot.KindUnread
	default:
		return bot.KindHelp
	}
}
