package lyrics

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>`)
	styleRe  = regexp.MustCompile(`(?i)<style[^>]*>[\s\S]*?</style>`)
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)

	noiseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^translations?$`),
		regexp.MustCompile(`(?i)contributor`),
		regexp.MustCompile(`(?i)^\d+\s*(contributor|contributors|writer|writers|producer|producers)`),
		regexp.MustCompile(`(?i)^(embed|share|more|less|show|hide)$`),
		regexp.MustCompile(`^\d{4}[-–—]\d{4}$`),
	}
)

// Normalize turns a raw HTML block into lyric lines.
//
// Markup becomes line breaks, entities are decoded, lines are trimmed and page chrome
// (contributor counts, button labels, year ranges) is dropped. ok is false when nothing is left.
func Normalize(raw string) (string, bool) {
	s := scriptRe.ReplaceAllString(raw, "")
	s = styleRe.ReplaceAllString(s, "")
	s = brRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "\n")

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(decodeEntities(line))
		if IsNoise(line) {
			continue
		}
		kept = append(kept, line)
	}

	text := strings.TrimSpace(strings.Join(kept, "\n"))
	return text, text != ""
}

// IsNoise reports whether a trimmed line is empty or page chrome rather than lyrics.
func IsNoise(line string) bool {
	if line == "" {
		return true
	}
	for _, re := range noiseRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// decodeEntities resolves named and numeric character references; non-breaking spaces become plain spaces.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
}
