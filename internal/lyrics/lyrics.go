// package lyrics recovers song lyrics from a lyrics page's HTML.
//
// Extraction runs an ordered chain of [Strategy] values; the first one whose
// normalized output is non-empty wins. Every strategy is a pure function over the page.
package lyrics

import (
	"regexp"
	"strings"
)

// Strategy locates a raw lyrics block in a page. ok is false when nothing matched.
type Strategy struct {
	Name string
	Find func(page string) (raw string, ok bool)
}

var (
	markedContainerRe = regexp.MustCompile(`(?i)<div[^>]*data-lyrics-container[^>]*>([\s\S]*?)</div>`)
	classContainerRe  = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*Lyrics__Container[^"]*"[^>]*>([\s\S]*?)</div>`)
	markedOpenTagRe   = regexp.MustCompile(`(?i)<div[^>]*data-lyrics-container[^>]*>`)

	firstMatchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<div[^>]*data-lyrics-container="true"[^>]*>([\s\S]*?)</div>`),
		markedContainerRe,
		regexp.MustCompile(`(?i)<div[^>]*class="[^"]*lyrics-container[^"]*"[^>]*>([\s\S]*?)</div>`),
		regexp.MustCompile(`(?i)<div[^>]*class="[^"]*lyrics[^"]*"[^>]*>([\s\S]*?)</div>`),
	}

	loosePatterns = []*regexp.Regexp{
		classContainerRe,
		regexp.MustCompile(`(?i)<div[^>]*class="[^"]*lyrics[^"]*"[^>]*>([\s\S]*?)</div>`),
		regexp.MustCompile(`(?i)<div[^>]*id="[^"]*lyrics[^"]*"[^>]*>([\s\S]*?)</div>`),
	}
)

// DefaultStrategies is the extraction order used by [Extract].
var DefaultStrategies = []Strategy{
	{Name: "all-marked-containers", Find: AllMarkedContainers},
	{Name: "first-match", Find: FirstMatch},
	{Name: "balanced-container", Find: BalancedContainer},
	{Name: "loose-containers", Find: LooseContainers},
}

// Extract runs [DefaultStrategies] over page.
func Extract(page string) (string, bool) {
	text, _, ok := ExtractWith(page, DefaultStrategies)
	return text, ok
}

// ExtractWith runs strategies in order and returns the first non-empty normalized result
// together with the name of the strategy that produced it.
func ExtractWith(page string, strategies []Strategy) (text, strategy string, ok bool) {
	for _, s := range strategies {
		raw, found := s.Find(page)
		if !found {
			continue
		}
		if text, ok := Normalize(raw); ok {
			return text, s.Name, true
		}
	}
	return "", "", false
}

// AllMarkedContainers joins every data-lyrics-container block, or failing that every
// Lyrics__Container block, with newlines.
func AllMarkedContainers(page string) (string, bool) {
	for _, re := range []*regexp.Regexp{markedContainerRe, classContainerRe} {
		matches := re.FindAllStringSubmatch(page, -1)
		if len(matches) == 0 {
			continue
		}

		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, m[1])
		}
		if joined := strings.Join(parts, "\n"); joined != "" {
			return joined, true
		}
	}
	return "", false
}

// FirstMatch returns the first block matched by the single-container patterns, tried in order.
func FirstMatch(page string) (string, bool) {
	return firstSubmatch(page, firstMatchPatterns)
}

// BalancedContainer scans forward from the first data-lyrics-container tag, counting
// nested divs, and returns the whole balanced block.
func BalancedContainer(page string) (string, bool) {
	loc := markedOpenTagRe.FindStringIndex(page)
	if loc == nil {
		return "", false
	}

	rest := page[loc[0]:]
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch {
		case hasFoldPrefix(rest[i:], "<div"):
			depth++
		case hasFoldPrefix(rest[i:], "</div>"):
			depth--
			if depth == 0 {
				return rest[:i+len("</div>")], true
			}
		}
	}
	return "", false
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// LooseContainers tries broader class and id patterns as a last resort.
func LooseContainers(page string) (string, bool) {
	return firstSubmatch(page, loosePatterns)
}

func firstSubmatch(page string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(page); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}
