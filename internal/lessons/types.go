// Package lessons generates per-lesson ebook content: prose from the text
// model plus one illustration per lesson, fanned out concurrently across
// the whole outline and returned in strict document order.
package lessons

// Request identifies one lesson to generate content for.
type Request struct {
	CourseTitle       string
	ModuleTitle       string
	LessonTitle       string
	LearningObjective string
	// 1-based positions within the outline.
	ModuleIndex int
	LessonIndex int
}

// Content is the generated material for one lesson. The title fields carry
// the display form ("Module N: ...", "Lesson N.M: ...") because display
// labels, not indexes, are the join key the assembler uses. The index pair
// is kept solely for restoring document order after concurrent generation.
type Content struct {
	ModuleTitle string `json:"module_title"`
	LessonTitle string `json:"lesson_title"`
	Content     string `json:"content"`
	ModuleIndex int    `json:"module_index"`
	LessonIndex int    `json:"lesson_index"`
}
