// Package decode turns the opaque message_content / compress_content
// columns of the chat store into readable text. The encoder is a closed
// third-party system, so every path here is best-effort: the worst case
// is an empty string or slightly garbled text, never an error.
package decode

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
)

// MinEncodedLen is the minimum length before a string is considered for
// hex or base64 interpretation. Short alphanumeric tokens ("test",
// "home", numeric ids) overlap both alphabets and would be mangled.
// Empirical threshold carried over from the upstream data.
const MinEncodedLen = 16

// zstdMagic is the little-endian frame magic of a zstd stream.
const zstdMagic = 0xFD2FB528

var (
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	hexRe    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	base64Re = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// MessageContent decodes a message row's content. The compressed column
// is preferred when it yields non-empty text; otherwise the primary
// column is decoded. Both empty yields "".
func MessageContent(content, compress string) string {
	if out := Field(compress); out != "" {
		return out
	}
	return Field(content)
}

// Field decodes a single opaque column value.
func Field(raw string) string {
	if raw == "" {
		return ""
	}
	// Numeric ids are stored verbatim even though they match the hex
	// alphabet.
	if digitsRe.MatchString(raw) {
		return raw
	}
	if len(raw) > MinEncodedLen && looksLikeHex(raw) {
		if data, err := hex.DecodeString(raw); err == nil && len(data) > 0 {
			return binaryContent(data)
		}
	}
	if len(raw) > MinEncodedLen && looksLikeBase64(raw) {
		if data, err := base64.StdEncoding.DecodeString(raw); err == nil && len(data) > 0 {
			return binaryContent(data)
		}
	}
	return raw
}

// binaryContent decodes raw bytes: zstd frames are inflated, everything
// else goes through UTF-8 with a Latin-1 fallback so no byte sequence
// ever fails.
func binaryContent(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == zstdMagic {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return ""
		}
		defer dec.Close()
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			return ""
		}
		return string(plain)
	}
	return lossyString(data)
}

// lossyString converts bytes to text. Up to 20% invalid UTF-8 sequences
// are tolerated and stripped; beyond that the data is treated as a
// single-byte encoding.
func lossyString(data []byte) string {
	total := 0
	bad := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			bad++
		}
		total++
		i += size
	}
	if total == 0 {
		return ""
	}
	if float64(bad) < float64(total)*0.2 {
		var b strings.Builder
		b.Grow(len(data))
		for i := 0; i < len(data); {
			r, size := utf8.DecodeRune(data[i:])
			if !(r == utf8.RuneError && size == 1) {
				b.WriteRune(r)
			}
			i += size
		}
		return b.String()
	}
	// Latin-1: every byte maps to the code point of the same value.
	runes := make([]rune, len(data))
	for i, c := range data {
		runes[i] = rune(c)
	}
	return string(runes)
}

func looksLikeHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	return hexRe.MatchString(s)
}

func looksLikeBase64(s string) bool {
	if len(s)%4 != 0 {
		return false
	}
	return base64Re.MatchString(s)
}
