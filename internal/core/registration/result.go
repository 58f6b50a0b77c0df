package registration

import (
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/session"
)

// Outcome は 1 回の入力に対する登録会話の結果種別です。
type Outcome string

const (
	// OutcomePrompted は社員番号の入力を求めたことを表します。
	OutcomePrompted Outcome = "prompted"
	// OutcomeRetry は入力が受け付けられず同じ段階に留まったことを表します。
	OutcomeRetry Outcome = "retry"
	// OutcomeAdvanced は次の段階に進んだことを表します。
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCompleted は登録が完了したことを表します。
	OutcomeCompleted Outcome = "completed"
	// OutcomeAlreadyRegistered は外部 ID が既に登録済み社員に紐づいていることを表します。
	OutcomeAlreadyRegistered Outcome = "already_registered"
	// OutcomeCancelled は利用者が登録を取り消したことを表します。
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeDuplicateIdentity は社員または外部 ID が既に別の相手に紐づいていることを表します。
	OutcomeDuplicateIdentity Outcome = "duplicate_identity"
	// OutcomeUnavailable は社員ディレクトリに到達できなかったことを表します。セッションは変更されません。
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeNoSession は進行中の登録会話がないことを表します。
	OutcomeNoSession Outcome = "no_session"
)

// Reason は OutcomeRetry の理由です。
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonUnknownNumber     Reason = "unknown_number"
	ReasonUnknownDepartment Reason = "unknown_department"
	ReasonInvalidPhone      Reason = "invalid_phone"
)

// Result は登録ステートマシンの 1 ステップの結果です。
type Result struct {
	Outcome Outcome
	Reason  Reason
	// Step は処理後の段階です。
	Step session.Step
	// Employee は番号照合後の候補社員、または登録済み・登録完了した社員です。
	Employee *employee.Employee
	// Options は AWAITING_DEPARTMENT で提示する部署名です。
	Options []string
	// Department は選択された部署名です。
	Department string
	// Phone は保存された勤務先電話番号です。
	Phone string
}
