package bot

import "github.com/ogurasousui/docack/internal/core/scan"

// Kind は受信イベントの種別です。
type Kind string

const (
	KindStart  Kind = "start"
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindCancel Kind = "cancel"
	KindStats  Kind = "stats"
	KindUnread Kind = "unread"
	KindHelp   Kind = "help"
)

// Event はチャットから届いた 1 件の入力です。ExternalID は送信者のチャット上の ID です。
type Event struct {
	ExternalID string
	Kind       Kind
	Text       string
	Image      scan.ImageSource
}

// Reply は 1 件の入力に対する返信です。
// Options が空でなければ選択肢として表示し、ClearOptions が真なら表示中の選択肢を消します。
type Reply struct {
	Text         string
	Options      []string
	ClearOptions bool
}
