package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCodecs = []Codec{CodecZstd, CodecGzip, CodecLZ4}

func TestRoundTrip_AllCodecsAllLevels(t *testing.T) {
	t.Parallel()

	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)

	inputs := map[string][]byte{
		"empty":      {},
		"small":      []byte("hello world, this is a compression test!"),
		"repetitive": bytes.Repeat([]byte("abcdefgh"), 2048),
		"random":     random,
	}

	for _, codec := range allCodecs {
		for name, in := range inputs {
			for level := MinLevel; level <= MaxLevel; level++ {
				compressed, err := codec.Compress(in, level)
				require.NoError(t, err, "%s/%s/level %d", codec, name, level)

				out, err := codec.Decompress(compressed)
				require.NoError(t, err, "%s/%s/level %d", codec, name, level)
				assert.Equal(t, in, out, "%s/%s/level %d", codec, name, level)
			}
		}
	}
}

func TestEmptyInput_ProducesDecodableFrame(t *testing.T) {
	t.Parallel()

	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()
			compressed, err := codec.Compress(nil, DefaultLevel)
			require.NoError(t, err)

			out, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.NotNil(t, out)
			assert.Empty(t, out)
		})
	}
}

func TestHigherLevelNotLarger(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 1024)
	fast, err := Compress(data, 1)
	require.NoError(t, err)
	best, err := Compress(data, 9)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(best), len(fast))

	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()
			for _, level := range []int{1, 9} {
				out, err := codec.Compress(data, level)
				require.NoError(t, err)
				assert.Less(t, len(out), len(data), "level %d", level)
			}
		})
	}
}

func TestPackageLevelHelpersUseDefaultCodec(t *testing.T) {
	t.Parallel()

	data := []byte("console.log('hi')")
	compressed, err := Compress(data, 3)
	require.NoError(t, err)

	viaCodec, err := DefaultCodec.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, viaCodec)

	out, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestCompress_RejectsInvalidLevel(t *testing.T) {
	t.Parallel()

	for _, level := range []int{-1, 0, 10} {
		_, err := CodecZstd.Compress([]byte("x"), level)
		require.ErrorIs(t, err, ErrInvalidLevel)
	}
}

func TestValidateCodec(t *testing.T) {
	t.Parallel()

	for _, codec := range allCodecs {
		require.NoError(t, ValidateCodec(codec), codec.String())
	}
	require.ErrorIs(t, ValidateCodec(Codec(42)), ErrUnknownCodec)
}

func TestDecompress_CorruptInput(t *testing.T) {
	t.Parallel()

	for _, codec := range allCodecs {
		_, err := codec.Decompress([]byte("definitely not compressed"))
		require.ErrorIs(t, err, ErrDecompression, codec.String())
	}
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", CodecZstd, false},
		{"zstd", CodecZstd, false},
		{"gzip", CodecGzip, false},
		{"lz4", CodecLZ4, false},
		{"brotli", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCodec(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestDecoderPool_Reuse(t *testing.T) {
	t.Parallel()

	pool := NewDecoderPool(0)
	for i := range 3 {
		data := bytes.Repeat([]byte{byte('a' + i)}, 1000)
		compressed, err := CodecZstd.Compress(data, 5)
		require.NoError(t, err)

		dec, release, err := pool.Get(bytes.NewReader(compressed))
		require.NoError(t, err)
		var out bytes.Buffer
		_, err = out.ReadFrom(dec)
		release()
		require.NoError(t, err)
		assert.Equal(t, data, out.Bytes())
	}
}
