// Package pipeline wires the generation stages together: outline from the
// LLM, per-lesson content fan-out, document assembly, PDF rendering and
// storage. Handlers call this package; it owns no HTTP concerns.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/startnerve/coursefactory/internal/assemble"
	"github.com/startnerve/coursefactory/internal/images"
	"github.com/startnerve/coursefactory/internal/lessons"
	"github.com/startnerve/coursefactory/internal/llm"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/prompts"
	"github.com/startnerve/coursefactory/internal/render"
	"github.com/startnerve/coursefactory/internal/store"
)

// Service runs the course generation pipeline end to end.
type Service struct {
	Text     llm.TextGenerator
	Images   images.Searcher
	Builder  *assemble.Builder
	Renderer render.Renderer
	Files    *store.Store
	// Workers bounds the lesson fan-out. Zero sizes the pool to the host.
	Workers int
}

// NewService assembles a pipeline from its stages.
func NewService(text llm.TextGenerator, imgs images.Searcher, renderer render.Renderer, files *store.Store, workers int) *Service {
	return &Service{
		Text:     text,
		Images:   imgs,
		Builder:  assemble.NewBuilder(text),
		Renderer: renderer,
		Files:    files,
		Workers:  workers,
	}
}

// GenerateOutline asks the model for a delimited course outline and parses
// it into a structured Outline. A response with no parseable modules
// surfaces outline.ErrNoModules so the caller can refund the attempt.
func (s *Service) GenerateOutline(ctx context.Context, topic, audience, framing string) (*outline.Outline, error) {
	framingLine := ""
	if strings.TrimSpace(framing) != "" {
		framingLine = fmt.Sprintf("Unique Angle or Framing: %s\n", strings.TrimSpace(framing))
	}
	prompt := prompts.Format(prompts.MustGet("ebook.json", "outline"), map[string]string{
		"Topic":    topic,
		"Audience": audience,
		"Framing":  framingLine,
	})

	raw, err := s.Text.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("outline generation failed: %w", err)
	}

	o, err := outline.Parse(raw)
	if err != nil {
		return nil, err
	}
	log.Printf("Generated outline %q: %d modules, %d lessons", o.CourseTitle, len(o.Modules), o.LessonCount())
	return o, nil
}

// GenerateContent produces content for every lesson in the outline. It
// never fails: lessons that could not be generated carry apology text.
func (s *Service) GenerateContent(ctx context.Context, o *outline.Outline) []lessons.Content {
	gen := lessons.NewGenerator(s.Text, s.Images)
	return lessons.GenerateAll(ctx, gen, o, s.Workers)
}

// BuildEbook assembles the final HTML document from the outline and edited
// lesson content, renders it to PDF and stores it. Returns the stored
// filename.
func (s *Service) BuildEbook(ctx context.Context, o *outline.Outline, content []lessons.Content, opts assemble.Options) (string, error) {
	doc := s.Builder.BuildDocument(ctx, o.CourseTitle, o, content, opts)

	pdf, err := s.Renderer.Render(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("PDF rendering failed: %w", err)
	}

	filename, err := s.Files.SavePDF(o.CourseTitle, pdf)
	if err != nil {
		return "", err
	}
	log.Printf("Stored ebook %s (%d bytes)", filename, len(pdf))
	return filename, nil
}
