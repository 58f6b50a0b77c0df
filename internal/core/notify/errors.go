package notify

import "errors"

var (
	// ErrRecipientUnreachable は宛先が配信を拒否している（ボットのブロックなど）場合に Notifier が返します。再試行しません。
	ErrRecipientUnreachable = errors.New("notify: recipient unreachable")
	ErrInvalidDocument      = errors.New("notify: invalid document")
)
