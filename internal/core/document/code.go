package document

import (
	"strings"

	"github.com/google/uuid"
)

const maxCodeLength = 255

// NewCode は新しい文書 ID と、それと同じ値のコードを払い出します。
func NewCode() (id, code string) {
	v := uuid.New().String()
	return v, v
}

// ParseCode は QR コードから読み取った文字列を文書識別子の形式として解釈します。
// 形式に合わない場合は ErrMalformedCode を返します。
func ParseCode(payload string) (string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || len(trimmed) > maxCodeLength {
		return "", ErrMalformedCode
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return "", ErrMalformedCode
	}
	return id.String(), nil
}
