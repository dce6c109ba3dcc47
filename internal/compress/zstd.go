package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstd.Encoder.EncodeAll is safe for concurrent use, so one encoder per
// level is shared by every caller.
var (
	zstdEncoders    [MaxLevel + 1]*zstd.Encoder
	zstdEncoderErrs [MaxLevel + 1]error
	zstdEncoderOnce [MaxLevel + 1]sync.Once
)

// zstdLevel maps a 1-9 level onto the encoder's speed presets.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func zstdEncoder(level int) (*zstd.Encoder, error) {
	zstdEncoderOnce[level].Do(func() {
		zstdEncoders[level], zstdEncoderErrs[level] = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstdLevel(level)),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true),
		)
	})
	if err := zstdEncoderErrs[level]; err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return zstdEncoders[level], nil
}

func compressZstd(data []byte, level int) ([]byte, error) {
	enc, err := zstdEncoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

var decoders = NewDecoderPool(0)

func decompressZstd(data []byte) ([]byte, error) {
	dec, release, err := decoders.Get(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer release()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
