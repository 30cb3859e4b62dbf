package normalize

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatDuration renders whole seconds as H:MM:SS with unpadded hours
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatJapaneseCount renders a count the way Japanese-locale pages do:
// grouped digits below 1万, one decimal of 万 below 1億, one decimal of 億 above.
func FormatJapaneseCount(n int64) string {
	switch {
	case n < 10_000:
		return message.NewPrinter(language.Japanese).Sprintf("%d", n)
	case n < 100_000_000:
		return strconv.FormatFloat(float64(n)/1e4, 'f', 1, 64) + "万"
	default:
		return strconv.FormatFloat(float64(n)/1e8, 'f', 1, 64) + "億"
	}
}

// NormalizeURL upgrades protocol-relative and plain http URLs to https
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	default:
		return raw
	}
}

// EscapeText turns plain text into HTML with newlines as <br>
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

// SanitizeHTML normalizes the URLs inside an upstream HTML fragment and
// turns bare newlines into <br>.
func SanitizeHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return EscapeText(fragment)
	}

	doc.Find("[href], [src]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			if value, ok := s.Attr(attr); ok {
				s.SetAttr(attr, NormalizeURL(value))
			}
		}
	})

	body, err := doc.Find("body").Html()
	if err != nil {
		return EscapeText(fragment)
	}

	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.ReplaceAll(body, "\n", "<br>")
}
