package lessons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startnerve/coursefactory/internal/images"
)

type fakeText struct {
	reply string
	err   error
}

func (f *fakeText) GenerateContent(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

func (f *fakeText) GenerateJSON(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

// fakeSearcher serves a fixed pool of photos, paged. Safe for concurrent
// use so it can back fan-out tests.
type fakeSearcher struct {
	mu      sync.Mutex
	photos  []images.Photo
	perPage int
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, page int) ([]images.Photo, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	start := (page - 1) * f.perPage
	if start >= len(f.photos) {
		return nil, nil
	}
	end := start + f.perPage
	if end > len(f.photos) {
		end = len(f.photos)
	}
	return f.photos[start:end], nil
}

func testRequest() Request {
	return Request{
		CourseTitle:       "Sourdough at Home",
		ModuleTitle:       "Getting Started",
		LessonTitle:       "Your First Starter",
		LearningObjective: "Cultivate a starter from flour and water.",
		ModuleIndex:       1,
		LessonIndex:       2,
	}
}

func TestGenerateBuildsFragmentAndLabels(t *testing.T) {
	text := &fakeText{reply: "First paragraph about fermentation.\n\nSecond paragraph about patience."}
	search := &fakeSearcher{photos: []images.Photo{{ID: 7, URL: "https://img.example/7.jpg"}}, perPage: 3}
	g := NewGenerator(text, search)

	c := g.Generate(context.Background(), testRequest(), images.NewUsedSet())

	assert.Equal(t, "Module 1: Getting Started", c.ModuleTitle)
	assert.Equal(t, "Lesson 1.2: Your First Starter", c.LessonTitle)
	assert.Equal(t, 1, c.ModuleIndex)
	assert.Equal(t, 2, c.LessonIndex)
	assert.Contains(t, c.Content, `src="https://img.example/7.jpg"`)
	assert.Contains(t, c.Content, "<p>First paragraph about fermentation.</p>")
	assert.Contains(t, c.Content, "<p>Second paragraph about patience.</p>")
}

func TestGenerateDeduplicatesRepeatedParagraphs(t *testing.T) {
	text := &fakeText{reply: "Same paragraph.\nSame paragraph.\nDifferent paragraph."}
	g := NewGenerator(text, nil)

	c := g.Generate(context.Background(), testRequest(), images.NewUsedSet())

	assert.Equal(t, 1, strings.Count(c.Content, "<p>Same paragraph.</p>"))
	assert.Contains(t, c.Content, "<p>Different paragraph.</p>")
}

func TestGenerateEscapesModelOutput(t *testing.T) {
	text := &fakeText{reply: `<script>alert("x")</script> 1 < 2`}
	g := NewGenerator(text, nil)

	c := g.Generate(context.Background(), testRequest(), images.NewUsedSet())

	assert.NotContains(t, c.Content, "<script>")
	assert.Contains(t, c.Content, "&lt;script&gt;")
}

func TestGenerateTextFailureYieldsApology(t *testing.T) {
	text := &fakeText{err: errors.New("model unavailable")}
	g := NewGenerator(text, nil)

	c := g.Generate(context.Background(), testRequest(), images.NewUsedSet())

	assert.Contains(t, c.Content, apologyText)
	assert.Equal(t, "Lesson 1.2: Your First Starter", c.LessonTitle)
}

func TestGenerateImageFailureYieldsPlaceholder(t *testing.T) {
	text := &fakeText{reply: "Some prose."}
	search := &fakeSearcher{err: errors.New("search down")}
	g := NewGenerator(text, search)

	c := g.Generate(context.Background(), testRequest(), images.NewUsedSet())

	assert.Contains(t, c.Content, images.PlaceholderURL)
	assert.Contains(t, c.Content, "<p>Some prose.</p>")
}

func TestGenerateSkipsAlreadyUsedImages(t *testing.T) {
	text := &fakeText{reply: "Prose."}
	search := &fakeSearcher{photos: []images.Photo{
		{ID: 1, URL: "https://img.example/1.jpg"},
		{ID: 2, URL: "https://img.example/2.jpg"},
	}, perPage: 3}
	g := NewGenerator(text, search)

	used := images.NewUsedSet()
	require.True(t, used.TryClaim(1))

	c := g.Generate(context.Background(), testRequest(), used)
	assert.Contains(t, c.Content, "https://img.example/2.jpg")
	assert.NotContains(t, c.Content, "https://img.example/1.jpg")
}

func TestGenerateExhaustedSearchBudgetYieldsPlaceholder(t *testing.T) {
	text := &fakeText{reply: "Prose."}
	// Every photo on every page is already claimed.
	var photos []images.Photo
	used := images.NewUsedSet()
	for i := int64(1); i <= 20; i++ {
		photos = append(photos, images.Photo{ID: i, URL: fmt.Sprintf("https://img.example/%d.jpg", i)})
		used.TryClaim(i)
	}
	search := &fakeSearcher{photos: photos, perPage: 3}
	g := NewGenerator(text, search)

	c := g.Generate(context.Background(), testRequest(), used)

	assert.Contains(t, c.Content, images.PlaceholderURL)
	assert.LessOrEqual(t, len(search.queries), maxSearchPages, "search attempts must be bounded")
}

func TestImageQueryUsesLessonTitleAndProseKeywords(t *testing.T) {
	paragraphs := []string{"Fermentation requires patience and consistent temperatures."}
	q := buildImageQuery(testRequest(), paragraphs)
	assert.Contains(t, q, "Your First Starter")

	// No long words in prose: falls back to the module title.
	q = buildImageQuery(testRequest(), []string{"a an it to be"})
	assert.Contains(t, q, "Getting Started")
}

func TestSampleKeywordsOnlyLongWords(t *testing.T) {
	kw := sampleKeywords([]string{"The fermentation process, needs warmth."}, 5)
	for _, w := range kw {
		assert.GreaterOrEqual(t, len(w), keywordMinLength)
	}
	assert.NotContains(t, kw, "needs")
	assert.Contains(t, kw, "fermentation")
}
