package lessons

import (
	"context"
	"log"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/startnerve/coursefactory/internal/images"
	"github.com/startnerve/coursefactory/internal/outline"
)

// ContentGenerator produces content for one lesson. Satisfied by
// *Generator; tests substitute deterministic fakes.
type ContentGenerator interface {
	Generate(ctx context.Context, req Request, used *images.UsedSet) Content
}

// GenerateAll fans one generation task per lesson out to a bounded worker
// pool and fans the results back in. Completion order is arbitrary; the
// returned slice is always in module-major, lesson-minor document order.
// Every lesson in the outline yields exactly one Content entry - failed
// generations carry placeholder material rather than leaving holes.
func GenerateAll(ctx context.Context, gen ContentGenerator, o *outline.Outline, workers int) []Content {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// One uniqueness set for the whole document, shared by all workers.
	used := images.NewUsedSet()

	var (
		mu      sync.Mutex
		results = make([]Content, 0, o.LessonCount())
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for mi, module := range o.Modules {
		for li, lesson := range module.Lessons {
			req := Request{
				CourseTitle:       o.CourseTitle,
				ModuleTitle:       module.ModuleTitle,
				LessonTitle:       lesson.LessonTitle,
				LearningObjective: lesson.LearningObjective,
				ModuleIndex:       mi + 1,
				LessonIndex:       li + 1,
			}
			g.Go(func() error {
				content := gen.Generate(ctx, req, used)
				mu.Lock()
				results = append(results, content)
				mu.Unlock()
				return nil
			})
		}
	}

	// Tasks never return errors; Wait only synchronizes completion.
	if err := g.Wait(); err != nil {
		log.Printf("[FANOUT] unexpected error from worker group: %v", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ModuleIndex != results[j].ModuleIndex {
			return results[i].ModuleIndex < results[j].ModuleIndex
		}
		return results[i].LessonIndex < results[j].LessonIndex
	})
	return results
}
