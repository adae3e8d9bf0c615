package lessons

import (
	"context"
	"fmt"
	"html"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/startnerve/coursefactory/internal/images"
	"github.com/startnerve/coursefactory/internal/llm"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/prompts"
)

// apologyText replaces lesson prose when the text model fails. The document
// must still assemble; a hole is worse than an apology.
const apologyText = "We're sorry, the content for this lesson could not be generated. Please try regenerating it."

// maxSearchPages bounds how many result pages are tried before falling
// back to the placeholder image.
const maxSearchPages = 5

// keywordMinLength is the minimum word length for prose keywords mixed
// into the image query to diversify results across lessons.
const keywordMinLength = 6

// DefaultCallTimeout bounds each external call (text or image) so one slow
// lesson cannot stall the whole document.
const DefaultCallTimeout = 90 * time.Second

// Generator produces content for a single lesson. It never returns an
// error: every upstream failure degrades to placeholder material.
type Generator struct {
	Text        llm.TextGenerator
	Images      images.Searcher
	CallTimeout time.Duration
}

// NewGenerator creates a lesson content generator.
func NewGenerator(text llm.TextGenerator, imgs images.Searcher) *Generator {
	return &Generator{Text: text, Images: imgs, CallTimeout: DefaultCallTimeout}
}

// Generate produces the HTML fragment for one lesson: an illustration block
// followed by paragraph blocks. used is the document-scoped uniqueness set
// shared by all concurrent lesson tasks.
func (g *Generator) Generate(ctx context.Context, req Request, used *images.UsedSet) Content {
	paragraphs := g.generateProse(ctx, req)
	photo := g.findImage(ctx, req, paragraphs, used)

	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<p class="ai-image"><img src="%s" alt="%s"></p>`,
		html.EscapeString(photo.URL), outline.AnchorID(req.LessonTitle)))
	for _, p := range paragraphs {
		b.WriteString("<p>" + html.EscapeString(p) + "</p>")
	}

	return Content{
		ModuleTitle: outline.ModuleLabel(req.ModuleIndex, req.ModuleTitle),
		LessonTitle: outline.LessonLabel(req.ModuleIndex, req.LessonIndex, req.LessonTitle),
		Content:     b.String(),
		ModuleIndex: req.ModuleIndex,
		LessonIndex: req.LessonIndex,
	}
}

// generateProse asks the text model for the lesson body and splits it into
// deduplicated paragraphs. Failure yields a single apology paragraph.
func (g *Generator) generateProse(ctx context.Context, req Request) []string {
	prompt := prompts.Format(prompts.MustGet("ebook.json", "lesson"), map[string]string{
		"CourseTitle":       req.CourseTitle,
		"ModuleTitle":       req.ModuleTitle,
		"LessonTitle":       req.LessonTitle,
		"LearningObjective": req.LearningObjective,
	})

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	text, err := g.Text.GenerateContent(callCtx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("[LESSON] prose generation failed for %q: %v", req.LessonTitle, err)
		return []string{apologyText}
	}
	return splitParagraphs(text)
}

// splitParagraphs trims, drops empties and removes literal repeats. The
// model occasionally emits the same paragraph twice back to back.
func splitParagraphs(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(text, "\n") {
		p := strings.TrimSpace(line)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{apologyText}
	}
	return out
}

// findImage searches for an illustration not already used in this
// document. It walks successive result pages up to maxSearchPages, claiming
// the first unclaimed ID. All failures degrade to the placeholder.
func (g *Generator) findImage(ctx context.Context, req Request, paragraphs []string, used *images.UsedSet) images.Photo {
	if g.Images == nil {
		return images.Placeholder()
	}

	query := buildImageQuery(req, paragraphs)
	for page := 1; page <= maxSearchPages; page++ {
		callCtx, cancel := g.callContext(ctx)
		photos, err := g.Images.Search(callCtx, query, page)
		cancel()
		if err != nil {
			log.Printf("[LESSON] image search failed for %q: %v", query, err)
			return images.Placeholder()
		}
		if len(photos) == 0 {
			break
		}
		for _, photo := range photos {
			if used.TryClaim(photo.ID) {
				return photo
			}
		}
	}
	return images.Placeholder()
}

// buildImageQuery combines the lesson title with up to two sampled long
// keywords from the generated prose, so lessons with similar titles still
// get distinct queries.
func buildImageQuery(req Request, paragraphs []string) string {
	parts := []string{req.LessonTitle}
	if kw := sampleKeywords(paragraphs, 2); len(kw) > 0 {
		parts = append(parts, kw...)
	} else {
		parts = append(parts, req.ModuleTitle)
	}
	return strings.Join(parts, " ")
}

// sampleKeywords picks up to n distinct words longer than
// keywordMinLength-1 characters from the prose.
func sampleKeywords(paragraphs []string, n int) []string {
	var candidates []string
	seen := make(map[string]struct{})
	for _, p := range paragraphs {
		for _, w := range strings.Fields(p) {
			w = strings.Trim(strings.ToLower(w), ".,;:!?\"'()")
			if len(w) < keywordMinLength {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func (g *Generator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := g.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
