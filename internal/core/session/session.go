package session

import "time"

// Step は登録会話の段階名です。ログとテストで使います。
type Step string

const (
	StepAwaitingNumber     Step = "awaiting_number"
	StepAwaitingDepartment Step = "awaiting_department"
	StepAwaitingPhone      Step = "awaiting_phone"
	StepDone               Step = "done"
	StepCancelled          Step = "cancelled"
)

// State は登録会話の状態です。以下の 3 つの型のいずれかで、段階ごとに必要なデータだけを持ちます。
// 終了状態（完了・取消）はセッションの削除で表現します。
type State interface {
	Step() Step
	sealed()
}

// AwaitingNumber は社員番号の入力待ちです。
type AwaitingNumber struct{}

// AwaitingDepartment は部署の選択待ちです。Options は提示した選択肢です。
type AwaitingDepartment struct {
	EmployeeID string
	Options    []DepartmentOption
}

// AwaitingPhone は勤務先電話番号の入力待ちです。
type AwaitingPhone struct {
	EmployeeID     string
	DepartmentName string
}

// DepartmentOption は選択肢として提示した部署です。
type DepartmentOption struct {
	ID   string
	Name string
}

func (AwaitingNumber) Step() Step     { return StepAwaitingNumber }
func (AwaitingDepartment) Step() Step { return StepAwaitingDepartment }
func (AwaitingPhone) Step() Step      { return StepAwaitingPhone }

func (AwaitingNumber) sealed()     {}
func (AwaitingDepartment) sealed() {}
func (AwaitingPhone) sealed()      {}

// Session は外部 ID ごとの進行中の登録会話です。
type Session struct {
	ExternalID  string
	State       State
	LastTouched time.Time
}

// Match は提示した選択肢から名前の完全一致で部署を探します。
func (s AwaitingDepartment) Match(name string) (DepartmentOption, bool) {
	for _, opt := range s.Options {
		if opt.Name == name {
			return opt, true
		}
	}
	return DepartmentOption{}, false
}

// Names は選択肢の部署名を提示順で返します。
func (s AwaitingDepartment) Names() []string {
	names := make([]string, len(s.Options))
	for i, opt := range s.Options {
		names[i] = opt.Name
	}
	return names
}
