package assemble

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/startnerve/coursefactory/internal/lessons"
	"github.com/startnerve/coursefactory/internal/llm"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/prompts"
)

// MissingContentHTML stands in for a lesson whose content is absent from
// the edited payload. A label mismatch must degrade, never crash the build.
const MissingContentHTML = `<p class="missing-content">Content for this lesson was not found.</p>`

// unavailableBlockHTML stands in for a summary or action guide whose
// generation call failed.
const unavailableBlockHTML = "<p>This section could not be generated.</p>"

// DefaultByline appears under the title when no cover image is supplied.
const DefaultByline = "By StartNerve AI"

// Options selects the theme and optional sections for one document build.
type Options struct {
	FontName            string
	ColorHex            string
	CoverImagePath      string
	IncludeSummary      bool
	IncludeActionGuides bool
}

// Builder assembles documents. Text is only consulted for the optional
// executive summary and action guides; everything else is deterministic.
type Builder struct {
	Fonts  FontCatalog
	Text   llm.TextGenerator
	Byline string
}

// NewBuilder creates a document builder with the default font catalog.
func NewBuilder(text llm.TextGenerator) *Builder {
	return &Builder{Fonts: DefaultFonts(), Text: text, Byline: DefaultByline}
}

// BuildDocument produces the complete HTML document: cover or title page,
// linked table of contents, optional executive summary, then every module
// chapter with its lessons in outline order. Lesson content is joined by
// display label; a missing label yields a placeholder paragraph.
func (b *Builder) BuildDocument(ctx context.Context, title string, o *outline.Outline, content []lessons.Content, opts Options) string {
	contentByLabel := make(map[string]string, len(content))
	for _, c := range content {
		contentByLabel[c.LessonTitle] = c.Content
	}

	if opts.ColorHex == "" {
		opts.ColorHex = "#FFFFFF"
	}
	style := styleBlock(b.Fonts.Get(opts.FontName), opts.ColorHex, PaletteFor(opts.ColorHex))

	var body strings.Builder
	b.writeTitlePage(&body, title, opts)
	b.writeTableOfContents(&body, o)
	if opts.IncludeSummary {
		b.writeExecutiveSummary(ctx, &body, title, content)
	}
	b.writeChapters(ctx, &body, o, contentByLabel, opts)

	return "<html><head><meta charset='UTF-8'>" + style + "</head><body>" + body.String() + "</body></html>"
}

func (b *Builder) writeTitlePage(w *strings.Builder, title string, opts Options) {
	if opts.CoverImagePath != "" {
		fmt.Fprintf(w, `<div class="title-page"><img src="%s"></div>`, html.EscapeString(opts.CoverImagePath))
		return
	}
	fmt.Fprintf(w, `<div class="title-page"><h1>%s</h1><h3>%s</h3></div>`,
		html.EscapeString(title), html.EscapeString(b.Byline))
}

func (b *Builder) writeTableOfContents(w *strings.Builder, o *outline.Outline) {
	w.WriteString(`<div class="toc-page"><h2>Table of Contents</h2><ul>`)
	for mi, module := range o.Modules {
		moduleLabel := outline.ModuleLabel(mi+1, module.ModuleTitle)
		fmt.Fprintf(w, `<li class="toc-module"><a href="#%s">%s</a><ul class="toc-lessons">`,
			outline.AnchorID(moduleLabel), html.EscapeString(moduleLabel))
		for li, lesson := range module.Lessons {
			lessonLabel := outline.LessonLabel(mi+1, li+1, lesson.LessonTitle)
			fmt.Fprintf(w, `<li><a href="#%s">%s</a></li>`,
				outline.AnchorID(lessonLabel), html.EscapeString(lessonLabel))
		}
		w.WriteString(`</ul></li>`)
	}
	w.WriteString(`</ul></div>`)
}

// writeExecutiveSummary inserts a summary page built from the full plain
// text of the course. Generation failure degrades to a placeholder block.
func (b *Builder) writeExecutiveSummary(ctx context.Context, w *strings.Builder, title string, content []lessons.Content) {
	w.WriteString(`<div class="summary-page"><h2>Executive Summary</h2>`)
	w.WriteString(b.generateBlock(ctx, "executive_summary", map[string]string{
		"CourseTitle": title,
		"Material":    collectPlainText(content),
	}))
	w.WriteString(`</div>`)
}

func (b *Builder) writeChapters(ctx context.Context, w *strings.Builder, o *outline.Outline, contentByLabel map[string]string, opts Options) {
	for mi, module := range o.Modules {
		moduleLabel := outline.ModuleLabel(mi+1, module.ModuleTitle)
		fmt.Fprintf(w, `<div class="chapter"><h2 id="%s">%s</h2></div>`,
			outline.AnchorID(moduleLabel), html.EscapeString(moduleLabel))

		var moduleContent []lessons.Content
		for li, lesson := range module.Lessons {
			lessonLabel := outline.LessonLabel(mi+1, li+1, lesson.LessonTitle)
			fragment, ok := contentByLabel[lessonLabel]
			if !ok {
				log.Printf("[ASSEMBLE] no content for label %q, inserting placeholder", lessonLabel)
				fragment = MissingContentHTML
			}
			fmt.Fprintf(w, `<div class="lesson"><h4 id="%s">%s</h4><div class="lesson-content">%s</div></div>`,
				outline.AnchorID(lessonLabel), html.EscapeString(lessonLabel), fragment)
			moduleContent = append(moduleContent, lessons.Content{LessonTitle: lessonLabel, Content: fragment})
		}

		if opts.IncludeActionGuides {
			fmt.Fprintf(w, `<div class="action-guide"><h2>Action Guide: %s</h2>`, html.EscapeString(module.ModuleTitle))
			w.WriteString(b.generateBlock(ctx, "action_guide", map[string]string{
				"ModuleTitle": module.ModuleTitle,
				"Material":    collectPlainText(moduleContent),
			}))
			w.WriteString(`</div>`)
		}
	}
}

// generateBlock runs one summarization-style prompt and returns the result
// as paragraph HTML, or the placeholder block on any failure.
func (b *Builder) generateBlock(ctx context.Context, promptKey string, data map[string]string) string {
	if b.Text == nil {
		return unavailableBlockHTML
	}
	prompt := prompts.Format(prompts.MustGet("ebook.json", promptKey), data)
	text, err := b.Text.GenerateContent(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("[ASSEMBLE] %s generation failed: %v", promptKey, err)
		return unavailableBlockHTML
	}

	var out strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if p := strings.TrimSpace(line); p != "" {
			out.WriteString("<p>" + html.EscapeString(p) + "</p>")
		}
	}
	return out.String()
}

// collectPlainText concatenates the markup-stripped text of the given
// lesson contents.
func collectPlainText(content []lessons.Content) string {
	var parts []string
	for _, c := range content {
		text, err := PlainText(c.Content)
		if err != nil || text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
