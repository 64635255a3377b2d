package ignore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hayeah/codesum/ignore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTextSample(t *testing.T) {
	cases := []struct {
		name   string
		sample []byte
		want   bool
	}{
		{"empty", nil, true},
		{"plain ascii", []byte("hello world\n"), true},
		{"utf8 text", []byte("héllo wörld ünïcode\n"), true},
		{"null byte", []byte("abc\x00def"), false},
		{"control heavy", []byte("\x01\x02\x03\x04\x05abc"), false},
		{"tabs and newlines ok", []byte("a\tb\r\nc\n"), true},
		{"latin1 fallback", []byte("caf\xe9 au lait\n"), true},
		{"utf16 le bom", append([]byte{0xFF, 0xFE}, []byte{'h', 0, 'i', 0, '\n', 0}...), true},
		{"utf16 be bom", append([]byte{0xFE, 0xFF}, []byte{0, 'h', 0, 'i', 0, '\n'}...), true},
		{"mostly unprintable", []byte(strings.Repeat("\x7f", 40) + "ab"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ignore.IsTextSample(tc.sample))
		})
	}
}

func TestIsTextFileExtensionFastPath(t *testing.T) {
	dir := t.TempDir()

	// A .go file is text by extension even when the content looks binary.
	goFile := filepath.Join(dir, "weird.go")
	require.NoError(t, os.WriteFile(goFile, []byte("\x01\x02\x03"), 0o644))
	assert.True(t, ignore.IsTextFile(goFile))

	// A .png is binary by extension without reading it.
	pngFile := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(pngFile, []byte("just text really"), 0o644))
	assert.False(t, ignore.IsTextFile(pngFile))
}

func TestIsTextFileSniff(t *testing.T) {
	dir := t.TempDir()

	textFile := filepath.Join(dir, "readme.unknownext")
	require.NoError(t, os.WriteFile(textFile, []byte("some notes\n"), 0o644))
	assert.True(t, ignore.IsTextFile(textFile))

	binFile := filepath.Join(dir, "blob.unknownext")
	require.NoError(t, os.WriteFile(binFile, []byte{0x89, 0x50, 0x4E, 0x47, 0x00, 0x01}, 0o644))
	assert.False(t, ignore.IsTextFile(binFile))

	assert.False(t, ignore.IsTextFile(filepath.Join(dir, "missing.unknownext")))
}
