package notify

// Failure は 1 宛先への配信失敗です。
type Failure struct {
	EmployeeID string
	ExternalID string
	Attempts   int
	Err        error
}

// Report は 1 文書ぶんの配信結果です。
type Report struct {
	DocumentID string
	Recipients int
	Delivered  int
	Failed     int
	Failures   []Failure
}

// Totals はプロセス起動以降の累計です。
type Totals struct {
	Documents int64
	Delivered int64
	Failed    int64
}
