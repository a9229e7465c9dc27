package helper

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	reHyphen   = regexp.MustCompile(`-+`)
	reNonPrint = regexp.MustCompile(`[^\x20-\x7E]+`)
	reSpaces   = regexp.MustCompile(`\s+`)
)

// stripMarks drops combining marks after NFD (é → e). đ/Đ have no
// decomposition so they are mapped by hand.
func stripMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case 'đ':
			r = 'd'
		case 'Đ':
			r = 'D'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ASCIIFold turns free text into printable ASCII, collapses whitespace and
// cuts at maxLen bytes (no limit when <= 0). Gateways reject diacritics in
// order descriptions.
func ASCIIFold(s string, maxLen int) string {
	s = stripMarks(strings.TrimSpace(s))
	s = reNonPrint.ReplaceAllString(s, " ")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen])
	}
	return s
}

// Slugify turns free text into [a-z0-9-], default maxLen 100, fallback "item".
func Slugify(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	s = strings.ToLower(stripMarks(strings.TrimSpace(s)))

	s = reNonAlnum.ReplaceAllString(s, "-")
	s = reHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		s = "item"
	}
	if utf8.RuneCountInString(s) > maxLen {
		rs := []rune(s)
		s = strings.Trim(string(rs[:maxLen]), "-")
	}
	if s == "" {
		s = "item"
	}
	return s
}
