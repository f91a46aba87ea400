package decode

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestFieldShortStringsPassThrough(t *testing.T) {
	// Strings at or below the threshold must never be reinterpreted,
	// even when they match the hex or base64 alphabets exactly.
	tests := []string{
		"test",
		"home",
		"deadbeef",
		"abcd1234abcd1234", // 16 chars of valid hex, still too short
		"aGVsbG8=",
		"",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if got := Field(in); got != in {
				t.Errorf("Field(%q) = %q, want unchanged", in, got)
			}
		})
	}
}

func TestFieldDigitsPassThrough(t *testing.T) {
	// Pure digit strings are pre-decoded numeric ids, any length.
	in := "123456789012345678901234567890"
	if got := Field(in); got != in {
		t.Errorf("Field(%q) = %q, want unchanged", in, got)
	}
}

func TestFieldHexDecode(t *testing.T) {
	plain := "hello from the chat store"
	encoded := hex.EncodeToString([]byte(plain))
	if len(encoded) <= MinEncodedLen {
		t.Fatal("test input too short to exercise hex path")
	}
	if got := Field(encoded); got != plain {
		t.Errorf("Field(hex) = %q, want %q", got, plain)
	}
}

func TestFieldBase64Decode(t *testing.T) {
	plain := "hello from the chat store"
	encoded := base64.StdEncoding.EncodeToString([]byte(plain))
	if got := Field(encoded); got != plain {
		t.Errorf("Field(base64) = %q, want %q", got, plain)
	}
}

func TestFieldOddLengthHexPassThrough(t *testing.T) {
	in := strings.Repeat("a", 21) // valid hex chars, odd length
	if got := Field(in); got != in {
		t.Errorf("Field(%q) = %q, want unchanged", in, got)
	}
}

func TestZstdRoundTrip(t *testing.T) {
	plain := "压缩内容 round trip ✓ " + strings.Repeat("x", 200)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll([]byte(plain), nil)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	encoded := hex.EncodeToString(compressed)
	if got := Field(encoded); got != plain {
		t.Errorf("zstd round trip = %q, want %q", got, plain)
	}
}

func TestMessageContentPrefersCompressed(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		compress string
		want     string
	}{
		{"compressed wins", "primary", "secondary", "secondary"},
		{"empty compressed falls back", "primary", "", "primary"},
		{"both empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageContent(tt.content, tt.compress); got != tt.want {
				t.Errorf("MessageContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLossyStringTolerance(t *testing.T) {
	// A few invalid bytes inside valid UTF-8 are stripped.
	data := append([]byte("mostly valid text here "), 0xFF)
	data = append(data, []byte(" and more valid text after")...)
	got := lossyString(data)
	if strings.ContainsRune(got, 0xFFFD) {
		t.Errorf("lossyString kept replacement char: %q", got)
	}
	if !strings.Contains(got, "mostly valid text") {
		t.Errorf("lossyString lost valid text: %q", got)
	}

	// Mostly invalid data falls back to a byte-per-rune decoding and
	// never panics or drops bytes.
	junk := []byte{0xFF, 0xFE, 0xFD, 0xFC, 0xFB}
	if got := lossyString(junk); len([]rune(got)) != len(junk) {
		t.Errorf("latin1 fallback len = %d, want %d", len([]rune(got)), len(junk))
	}
}
