package qrcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrUnsupportedImage は画像形式を解釈できなかった場合に返却されます。
var ErrUnsupportedImage = errors.New("qrcode: unsupported image")

// Decoder は gozxing を使って写真から QR コードを読み取ります。
type Decoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewDecoder は Decoder を生成します。
func NewDecoder() *Decoder {
	return &Decoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode は画像に含まれる QR コードの内容を返します。コードが見つからない場合は空のスライスです。
func (d *Decoder) Decode(ctx context.Context, data []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("qrcode: binarize: %w", err)
	}

	// gozxing は検出失敗も読み取り失敗もエラーで返すため、いずれもコードなしとして扱う。
	result, err := zxqr.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return nil, nil
	}
	return []string{result.GetText()}, nil
}
