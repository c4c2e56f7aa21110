// Package cleaner normalizes extracted text before it is split into slides.
package cleaner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	bulletPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*[-•*]\s+`),
		regexp.MustCompile(`^\s*\d+\.\s+`),
		regexp.MustCompile(`^\s*[a-zA-Z]\)\s+`),
		regexp.MustCompile(`^\s*\(\d+\)\s+`),
		regexp.MustCompile(`^\s*[ivxIVX]+\.\s+`),
		regexp.MustCompile(`^\s*[□■◆▪▫●○]\s+`),
	}
	footerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)confidential`),
		regexp.MustCompile(`(?i)proprietary`),
		regexp.MustCompile(`(?i)all\s+rights\s+reserved`),
		regexp.MustCompile(`(?i)copyright`),
		regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+`),
		regexp.MustCompile(`^\s*\d+\s*$`),
		regexp.MustCompile(`(?i)www\.`),
		regexp.MustCompile(`@\w+\.\w+`),
	}
	markupPattern     = regexp.MustCompile(`<[^>]+>|\[\w+\]|\{\w+\}`)
	slidePattern      = regexp.MustCompile(`(?i)^slide\s+\d+`)
	sectionPattern    = regexp.MustCompile(`^\s*\d+(\.\d+)*\s+\w+`)
	wordPattern       = regexp.MustCompile(`[a-zA-Z]{3,}`)
	blankRunPattern   = regexp.MustCompile(`\n\s*\n`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]{2,}`)
	digitsOnlyPattern = regexp.MustCompile(`^\d+$`)
)

// Cleaner drops markup and boilerplate lines and separates headers with blank
// lines so paragraph splitting lands on slide boundaries.
type Cleaner struct {
	aggressive bool
}

func New(aggressive bool) *Cleaner {
	return &Cleaner{aggressive: aggressive}
}

func (c *Cleaner) Clean(text string) string {
	out := Basic(text)
	if c.aggressive {
		out = Aggressive(out)
	}
	return out
}

func IsBullet(line string) bool {
	for _, p := range bulletPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func IsFooter(line string) bool {
	for _, p := range footerPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func IsMarkup(line string) bool {
	return markupPattern.MatchString(line)
}

// IsHeader reports whether line reads like a slide title. prev is the raw
// line before it; a short line after a blank one counts as a header.
func IsHeader(line, prev string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if (strings.ToUpper(line) == line && strings.ToLower(line) != line) || slidePattern.MatchString(line) {
		return true
	}
	n := utf8.RuneCountInString(line)
	if n < 60 && strings.HasSuffix(line, ":") {
		return true
	}
	if n < 80 && strings.TrimSpace(prev) == "" {
		return true
	}
	return sectionPattern.MatchString(line)
}

// Basic removes markup, footer and blank lines and puts a blank line before
// each detected header.
func Basic(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var kept []string
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || IsMarkup(line) || IsFooter(line) {
			continue
		}
		if IsBullet(line) {
			kept = append(kept, line)
			continue
		}
		prev := ""
		if i > 0 {
			prev = lines[i-1]
		}
		if IsHeader(line, prev) && len(kept) > 0 {
			kept = append(kept, "")
		}
		kept = append(kept, line)
	}
	return blankRunPattern.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
}

// Aggressive keeps headers, bullets and lines with at least one real word.
// Bullets under a header are indented.
func Aggressive(text string) string {
	var kept []string
	inSection := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case IsHeader(line, "x"):
			if len(kept) > 0 {
				kept = append(kept, "")
			}
			kept = append(kept, line)
			inSection = true
		case IsBullet(line):
			if inSection {
				line = "  " + line
			}
			kept = append(kept, line)
		case utf8.RuneCountInString(line) < 4 || digitsOnlyPattern.MatchString(line):
		case wordPattern.MatchString(line):
			kept = append(kept, line)
		}
	}
	out := spaceRunPattern.ReplaceAllString(strings.Join(kept, "\n"), " ")
	return blankRunPattern.ReplaceAllString(out, "\n\n")
}
