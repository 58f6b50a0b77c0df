package bot

import (
	"fmt"
	"strings"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/ledger"
	"github.com/ogurasousui/docack/internal/core/registration"
	"github.com/ogurasousui/docack/internal/core/scan"
	"github.com/ogurasousui/docack/internal/core/session"
)

const (
	msgAskNumber        = "社員番号を入力してください。"
	msgUnknownNumber    = "社員番号が見つかりません。もう一度入力してください。"
	msgChooseDepartment = "一覧から所属部署を選択してください。"
	msgAskPhone         = "勤務先の電話番号を入力してください。"
	msgInvalidPhone     = "電話番号の形式が正しくありません。数字と + - ( ) と空白で入力してください。"
	msgCancelled        = "登録を取り消しました。/start でやり直せます。"
	msgDuplicate        = "この社員は既に別のアカウントで登録されています。管理者に連絡してください。"
	msgUnavailable      = "現在サービスを利用できません。しばらくしてから再度お試しください。"
	msgNotRegistered    = "まだ登録されていません。/start で登録してください。"
	msgNoCode           = "QR コードを読み取れませんでした。コード全体が写るように撮影してください。"
	msgMalformedCode    = "この QR コードは文書のものではありません。"
	msgDocumentNotFound = "文書が見つかりません。"
	msgNoUnread         = "未確認の文書はありません。"
	msgNoSession        = "/start で登録を開始するか、文書の QR コードの写真を送ってください。/help でコマンド一覧を表示します。"

	msgHelp = "使い方\n" +
		"/start 登録を開始します\n" +
		"/cancel 登録を取り消します\n" +
		"/stats 所属部署の確認状況を表示します\n" +
		"/unread 未確認の文書を表示します\n" +
		"/help この説明を表示します\n\n" +
		"文書の QR コードを撮影して送信すると、確認が記録されます。"

	timestampLayout = "2006-01-02 15:04"
)

// NewDocumentText は新着文書の通知本文です。
func NewDocumentText(doc *document.Document) string {
	return fmt.Sprintf("新しい文書が公開されました\n件名: %s\n種別: %s\n締切: %s\n\nQR コードを撮影して送信し、確認してください。",
		doc.Title, doc.Kind, doc.DeadlineDate())
}

func registrationReply(res registration.Result) Reply {
	switch res.Outcome {
	case registration.OutcomePrompted:
		return Reply{Text: msgAskNumber, ClearOptions: true}
	case registration.OutcomeAlreadyRegistered:
		return Reply{Text: fmt.Sprintf("%s さんは登録済みです。文書の QR コードの写真を送ってください。", res.Employee.FullName()), ClearOptions: true}
	case registration.OutcomeAdvanced:
		if res.Step == session.StepAwaitingPhone {
			return Reply{Text: fmt.Sprintf("部署「%s」を設定しました。%s", res.Department, msgAskPhone), ClearOptions: true}
		}
		return Reply{Text: fmt.Sprintf("%s さん、%s", res.Employee.FullName(), msgChooseDepartment), Options: res.Options}
	case registration.OutcomeRetry:
		switch res.Reason {
		case registration.ReasonUnknownDepartment:
			return Reply{Text: msgChooseDepartment, Options: res.Options}
		case registration.ReasonInvalidPhone:
			return Reply{Text: msgInvalidPhone}
		default:
			return Reply{Text: msgUnknownNumber}
		}
	case registration.OutcomeCompleted:
		return Reply{Text: completedText(res), ClearOptions: true}
	case registration.OutcomeCancelled:
		return Reply{Text: msgCancelled, ClearOptions: true}
	case registration.OutcomeDuplicateIdentity:
		return Reply{Text: msgDuplicate, ClearOptions: true}
	case registration.OutcomeNoSession:
		return Reply{Text: msgNoSession}
	default:
		return Reply{Text: msgUnavailable}
	}
}

func completedText(res registration.Result) string {
	var b strings.Builder
	b.WriteString("登録が完了しました。\n")
	fmt.Fprintf(&b, "氏名: %s\n", res.Employee.FullName())
	fmt.Fprintf(&b, "社員番号: %s\n", res.Employee.Number)
	fmt.Fprintf(&b, "部署: %s\n", res.Department)
	fmt.Fprintf(&b, "電話: %s\n\n", res.Phone)
	b.WriteString("文書の QR コードを撮影して送信すると、確認が記録されます。")
	return b.String()
}

func scanReply(res scan.Result) Reply {
	switch res.Outcome {
	case scan.OutcomeConfirmed:
		return Reply{Text: fmt.Sprintf("「%s」の確認を記録しました。", res.Document.Title)}
	case scan.OutcomeAlreadyAcknowledged:
		return Reply{Text: fmt.Sprintf("「%s」は %s に確認済みです。", res.Document.Title, res.ConfirmedAt.Format(timestampLayout))}
	case scan.OutcomeNotRegistered:
		return Reply{Text: msgNotRegistered}
	case scan.OutcomeNoCodeDetected:
		return Reply{Text: msgNoCode}
	case scan.OutcomeMalformedCode:
		return Reply{Text: msgMalformedCode}
	case scan.OutcomeDocumentNotFound:
		return Reply{Text: msgDocumentNotFound}
	default:
		return Reply{Text: msgUnavailable}
	}
}

func summaryText(s *ledger.Summary) string {
	return fmt.Sprintf("所属部署の確認状況\n文書数: %d\n確認済み: %d\n未確認: %d\n確認率: %d%%",
		s.Total, s.Read, s.Remaining(), s.Percent())
}

func unreadText(docs []*document.Document) string {
	if len(docs) == 0 {
		return msgNoUnread
	}
	var b strings.Builder
	fmt.Fprintf(&b, "未確認の文書 (%d 件)\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&b, "\n・%s (%s) 締切 %s", d.Title, d.Kind, d.DeadlineDate())
	}
	return b.String()
}
