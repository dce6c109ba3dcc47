// Package compress implements the reversible byte-stream codecs used for
// blob content.
//
// Every codec accepts a level in [MinLevel, MaxLevel] where low values favor
// speed and high values favor ratio. Decompress exactly inverts Compress for
// the same codec, including for empty input.
package compress

import (
	"errors"
	"fmt"
)

// Level bounds shared by all codecs.
const (
	MinLevel     = 1
	MaxLevel     = 9
	DefaultLevel = 6
)

var (
	// ErrInvalidLevel is returned when a compression level is out of range.
	ErrInvalidLevel = errors.New("compress: level out of range")

	// ErrUnknownCodec is returned for an unrecognized codec.
	ErrUnknownCodec = errors.New("compress: unknown codec")

	// ErrDecompression is returned when compressed data cannot be decoded.
	ErrDecompression = errors.New("compress: decompression failed")
)

// Codec identifies a compression algorithm. The name of a codec is stored
// in archive metadata, so names are format constants.
type Codec uint8

const (
	CodecZstd Codec = iota
	CodecGzip
	CodecLZ4
)

// DefaultCodec is used when no codec is configured or recorded.
const DefaultCodec = CodecZstd

// String returns the name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecGzip:
		return "gzip"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCodec parses a codec from its name. The empty string selects
// DefaultCodec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "zstd":
		return CodecZstd, nil
	case "gzip":
		return CodecGzip, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ValidateCodec returns ErrUnknownCodec if c is not one of the known codecs.
func ValidateCodec(c Codec) error {
	switch c {
	case CodecZstd, CodecGzip, CodecLZ4:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCodec, c)
	}
}

// ValidateLevel returns ErrInvalidLevel if level is outside [MinLevel, MaxLevel].
func ValidateLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidLevel, level, MinLevel, MaxLevel)
	}
	return nil
}

// Compress encodes data with the codec at the given level.
func (c Codec) Compress(data []byte, level int) ([]byte, error) {
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}
	switch c {
	case CodecZstd:
		return compressZstd(data, level)
	case CodecGzip:
		return compressGzip(data, level)
	case CodecLZ4:
		return compressLZ4(data, level)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}
}

// Decompress decodes data produced by Compress with the same codec.
func (c Codec) Decompress(data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case CodecZstd:
		out, err = decompressZstd(data)
	case CodecGzip:
		out, err = decompressGzip(data)
	case CodecLZ4:
		out, err = decompressLZ4(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, c, err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// Compress encodes data with DefaultCodec.
func Compress(data []byte, level int) ([]byte, error) {
	return DefaultCodec.Compress(data, level)
}

// Decompress decodes data produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	return DefaultCodec.Decompress(data)
}
