package assemble

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips an HTML fragment to its paragraph text, dropping image
// blocks entirely. The result feeds summarization prompts, which want
// prose, not markup.
func PlainText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + fragment + "</div>"))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("ai-image") {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n"), nil
}
