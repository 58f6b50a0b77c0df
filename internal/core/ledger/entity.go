package ledger

import "time"

// Record は社員が文書の内容を確認したという事実です。(EmployeeID, DocumentID) ごとに高々 1 件です。
type Record struct {
	ID          string
	EmployeeID  string
	DocumentID  string
	Confirmed   bool
	ConfirmedAt time.Time
}

// Outcome は RecordIfAbsent の結果です。Created が偽の場合 Record は既存の記録です。
type Outcome struct {
	Created bool
	Record  *Record
}

// Progress は 1 文書の確認状況です。
type Progress struct {
	DocumentID string
	Readers    int
	Eligible   int
}

// Percent は確認率を 0〜100 の整数で返します。対象者が 0 人の場合は 0 です。
func (p Progress) Percent() int {
	return percent(p.Readers, p.Eligible)
}

// Summary は社員本人の所属部署における確認状況です。
type Summary struct {
	Total int
	Read  int
}

// Remaining は未確認の文書数です。
func (s Summary) Remaining() int {
	return s.Total - s.Read
}

// Percent は確認率を 0〜100 の整数で返します。文書が 0 件の場合は 0 です。
func (s Summary) Percent() int {
	return percent(s.Read, s.Total)
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return part * 100 / whole
}
