package document

import "time"

// Document は公開された文書です。部署ごとに 1 行で、全部署向けの公開は部署数ぶんの行になります。
type Document struct {
	ID           string
	DepartmentID string
	Title        string
	Kind         string
	Deadline     time.Time
	Code         string
	CreatedAt    time.Time
}

// DeadlineDate は締切日を 02.01.2006 形式で返します。
func (d *Document) DeadlineDate() string {
	if d.Deadline.IsZero() {
		return "-"
	}
	return d.Deadline.Format("02.01.2006")
}
