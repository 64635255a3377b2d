package ignore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

const sniffLen = 8192

// textExtensions short-circuit the content sniff for unambiguous text.
var textExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".rb": true, ".rs": true, ".java": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".md": true, ".txt": true, ".rst": true, ".json": true, ".yaml": true,
	".yml": true, ".toml": true, ".ini": true, ".cfg": true, ".xml": true,
	".html": true, ".css": true, ".scss": true, ".sql": true, ".sh": true,
	".bash": true, ".zsh": true, ".ps1": true, ".bat": true, ".proto": true,
	".csv": true, ".tsv": true, ".env": true, ".gitignore": true,
}

// binaryExtensions short-circuit the content sniff for unambiguous binary.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".gz": true,
	".bz2": true, ".xz": true, ".tar": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".class": true, ".pyc": true, ".pyo": true, ".wasm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".sqlite": true, ".db": true, ".bin": true, ".dat": true, ".jar": true,
}

// IsTextFile reports whether the file at path should be treated as text.
// Unreadable files are not text.
func IsTextFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if textExtensions[ext] {
		return true
	}
	if binaryExtensions[ext] {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	return IsTextSample(buf[:n])
}

// IsTextSample classifies a content sample as text. An empty sample is
// text. A sample is binary when it contains a null byte, when control
// characters (other than tab, newline, carriage return) exceed 10% of the
// bytes, when no supported encoding can decode it, or when fewer than 70%
// of decoded characters are printable or whitespace.
func IsTextSample(sample []byte) bool {
	if len(sample) == 0 {
		return true
	}

	// UTF-16 text legitimately contains null bytes, so a BOM is checked
	// before the null-byte rule.
	if runes, ok := decodeUTF16(sample); ok {
		return mostlyPrintable(runes)
	}

	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	ctrl := 0
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			ctrl++
		}
	}
	if float64(ctrl) > 0.10*float64(len(sample)) {
		return false
	}

	var runes []rune
	if utf8.Valid(sample) {
		runes = []rune(string(sample))
	} else {
		// Latin-1: every byte maps to the code point of the same value.
		runes = make([]rune, len(sample))
		for i, b := range sample {
			runes[i] = rune(b)
		}
	}
	return mostlyPrintable(runes)
}

func mostlyPrintable(runes []rune) bool {
	if len(runes) == 0 {
		return true
	}
	printable := 0
	for _, r := range runes {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable) >= 0.70*float64(len(runes))
}

// decodeUTF16 decodes a BOM-prefixed UTF-16 sample. A truncated trailing
// code unit (from the fixed-size sniff) is dropped.
func decodeUTF16(sample []byte) ([]rune, bool) {
	if len(sample) < 2 {
		return nil, false
	}
	var littleEndian bool
	switch {
	case sample[0] == 0xFF && sample[1] == 0xFE:
		littleEndian = true
	case sample[0] == 0xFE && sample[1] == 0xFF:
		littleEndian = false
	default:
		return nil, false
	}

	body := sample[2:]
	units := make([]uint16, 0, len(body)/2)
	for i := 0; i+1 < len(body); i += 2 {
		if littleEndian {
			units = append(units, uint16(body[i])|uint16(body[i+1])<<8)
		} else {
			units = append(units, uint16(body[i])<<8|uint16(body[i+1]))
		}
	}
	return utf16.Decode(units), true
}
