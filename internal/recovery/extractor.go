package recovery

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

var (
	textRunPattern   = regexp.MustCompile(`(?s)<a:t(?:\s[^>]*)?>(.*?)</a:t>`)
	printablePattern = regexp.MustCompile(`[A-Za-z0-9\s.,;:?!'"\-_&]{10,}`)
	blankLinePattern = regexp.MustCompile(`\n\s*\n`)

	entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")
)

// DecodeLossy decodes data as UTF-8, replacing invalid sequences with U+FFFD.
func DecodeLossy(data []byte) string {
	out, err := xunicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// ExtractFragments pulls candidate text out of mixed binary/XML bytes. Text run
// contents come first, then long printable runs; the result keeps only the first
// occurrence of each string.
func ExtractFragments(data []byte) []string {
	text := DecodeLossy(data)

	var candidates []string
	for _, m := range textRunPattern.FindAllStringSubmatch(text, -1) {
		s := strings.TrimSpace(entityReplacer.Replace(m[1]))
		if utf8.RuneCountInString(s) < 3 || strings.HasPrefix(s, "<?xml") {
			continue
		}
		candidates = append(candidates, s)
	}
	for _, m := range printablePattern.FindAllString(text, -1) {
		s := strings.TrimSpace(m)
		if len(s) < 10 {
			continue
		}
		candidates = append(candidates, s)
	}
	return dedupe(candidates)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SplitParagraphs splits text on blank lines, dropping empty paragraphs.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLinePattern.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type namedDecoder struct {
	name string
	enc  encoding.Encoding
}

// 按顺序尝试的后备编码
var fallbackEncodings = []namedDecoder{
	{name: "latin-1", enc: charmap.ISO8859_1},
	{name: "cp1252", enc: charmap.Windows1252},
	{name: "iso-8859-15", enc: charmap.ISO8859_15},
}

// DecodeText decodes a plain-text source as UTF-8, falling back to single-byte
// Western encodings. A decoding is accepted only if it yields no control
// characters besides whitespace.
func DecodeText(data []byte) (string, string, error) {
	data = trimBOM(data)
	if utf8.Valid(data) && plausibleText(string(data)) {
		return string(data), "utf-8", nil
	}
	for _, fb := range fallbackEncodings {
		out, err := fb.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if s := string(out); plausibleText(s) {
			return s, fb.name, nil
		}
	}
	return "", "", ErrUndecodableText
}

// LoadParagraphs reads a pre-extracted text file and splits it into paragraphs.
func LoadParagraphs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text source: %w", err)
	}
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return SplitParagraphs(text), nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xef && data[1] == 0xbb && data[2] == 0xbf {
		return data[3:]
	}
	return data
}

func plausibleText(s string) bool {
	for _, r := range s {
		if r == utf8.RuneError || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return false
		}
	}
	return true
}
