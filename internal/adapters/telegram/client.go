package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/core/bot"
	"github.com/ogurasousui/docack/internal/core/notify"
	"github.com/ogurasousui/docack/internal/platform/config"
)

const maxImageBytes = 20 << 20

// API は Bot API のうちこのパッケージが使う部分です。
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Connect は設定から Bot API クライアントを生成します。ロングポーリングの待ち時間ぶん HTTP タイムアウトを延ばします。
func Connect(cfg config.TelegramConfig) (*tgbotapi.BotAPI, *http.Client, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout + time.Duration(cfg.PollTimeout)*time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return api, &http.Client{Timeout: cfg.RequestTimeout}, nil
}

// Client は返信と新着通知の送信を担います。bot.Responder と notify.Notifier を満たします。
type Client struct {
	api    API
	logger *zap.Logger
}

// NewClient は Client を生成します。
func NewClient(api API, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, logger: logger.Named("telegram")}
}

// Respond は返信を送ります。選択肢があれば 1 回限りのキーボードとして表示します。
func (c *Client) Respond(ctx context.Context, externalID string, reply bot.Reply) error {
	chatID, err := parseChatID(externalID)
	if err != nil {
		return err
	}
	return c.send(ctx, renderReply(chatID, reply))
}

// Notify はテキストのみの通知を送ります。
func (c *Client) Notify(ctx context.Context, externalID, text string) error {
	chatID, err := parseChatID(externalID)
	if err != nil {
		return fmt.Errorf("%w: %v", notify.ErrRecipientUnreachable, err)
	}
	return c.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// send は ctx の期限で送信を打ち切ります。Bot API クライアント自体は ctx を受け取らないため、
// 打ち切られた送信は HTTP タイムアウトまでバックグラウンドで完了を待ちます。
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := c.api.Send(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return translateError(err)
	}
}

func renderReply(chatID int64, reply bot.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case len(reply.Options) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Options))
		for _, opt := range reply.Options {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(opt)))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		keyboard.ResizeKeyboard = true
		msg.ReplyMarkup = keyboard
	case reply.ClearOptions:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return msg
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", notify.ErrRecipientUnreachable, apiErr.Message)
		case http.StatusBadRequest:
			// チャットが存在しない場合も 400 が返る。
			return fmt.Errorf("%w: %s", notify.ErrRecipientUnreachable, apiErr.Message)
		}
	}
	return fmt.Errorf("telegram: send: %w", err)
}

func parseChatID(externalID string) (int64, error) {
	id, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", externalID, err)
	}
	return id, nil
}

// fileFetcher はファイル ID から本体をダウンロードします。
type fileFetcher struct {
	api  API
	http *http.Client
}

func (f fileFetcher) source(fileID string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		url, err := f.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("telegram: resolve file: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("telegram: build file request: %w", err)
		}
		resp, err := f.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("telegram: download file: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("telegram: download file: unexpected status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("telegram: read file: %w", err)
		}
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("telegram: file exceeds %d bytes", maxImageBytes)
		}
		return data, nil
	}
}
