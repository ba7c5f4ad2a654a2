package assembler

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"jusdown/internal/consts"
	"jusdown/internal/entity"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeTitle folds accents and keeps only ASCII letters, digits, spaces
// and hyphens, with whitespace collapsed. An empty result becomes "download".
func SanitizeTitle(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder

	for _, r := range folded {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	safe := strings.Join(strings.Fields(b.String()), " ")
	if safe == "" {
		return consts.DefaultDownloadName
	}

	return safe
}

var reQuality = regexp.MustCompile(`(?i)^(\d{3,4}p|\d+ ?kb/s)$`)

// sanitizeQuality returns quality when it is a frame height like "1080p" or
// a bitrate like "320kb/s", and "" otherwise.
func sanitizeQuality(quality string) string {
	q := strings.Join(strings.Fields(quality), " ")
	if !reQuality.MatchString(q) {
		return ""
	}

	return q
}

// DisplayName composes "<brand> - <title>[ - <label>][ | <quality>].<ext>"
// with the part before the extension cut to maxLen-len(ext)-1 bytes.
func DisplayName(brand, title string, ct entity.ContentType, quality, ext string, maxLen int) string {
	var b strings.Builder

	b.WriteString(brand)
	b.WriteString(" - ")
	b.WriteString(SanitizeTitle(title))

	if label := ct.Label(); label != "" {
		b.WriteString(" - ")
		b.WriteString(label)
	}

	if q := sanitizeQuality(quality); q != "" {
		b.WriteString(" | ")
		b.WriteString(q)
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	name := truncate(b.String(), maxLen-len(ext)-1)
	if ext == "" {
		return name
	}

	return name + "." + ext
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}

	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return strings.TrimRight(s[:n], " ")
}
