// Package outline provides the course outline data model and the
// delimiter-format parser/serializer used to exchange outlines with the LLM.
package outline

import (
	"fmt"
	"strings"
)

// Outline is the top-level structured course plan.
type Outline struct {
	CourseTitle    string   `json:"course_title"`
	CourseOverview string   `json:"course_overview,omitempty"`
	Modules        []Module `json:"modules"`
}

// Module is a named group of lessons. Its 1-based position in
// Outline.Modules is the module index used in display labels.
type Module struct {
	ModuleTitle string   `json:"module_title"`
	Lessons     []Lesson `json:"lessons"`
}

// Lesson is the smallest content unit.
type Lesson struct {
	LessonTitle       string `json:"lesson_title"`
	LearningObjective string `json:"learning_objective"`
}

// LessonCount returns the total number of lessons across all modules.
func (o *Outline) LessonCount() int {
	n := 0
	for _, m := range o.Modules {
		n += len(m.Lessons)
	}
	return n
}

// ModuleLabel builds the display label for a module ("Module N: Title").
// modIdx is 1-based.
func ModuleLabel(modIdx int, title string) string {
	return fmt.Sprintf("Module %d: %s", modIdx, title)
}

// LessonLabel builds the display label for a lesson ("Lesson N.M: Title").
// Both indexes are 1-based.
func LessonLabel(modIdx, lesIdx int, title string) string {
	return fmt.Sprintf("Lesson %d.%d: %s", modIdx, lesIdx, title)
}

// AnchorID derives an identifier-safe anchor from a display label so
// table-of-contents links resolve inside the document. Lowercases and
// collapses every run of non-alphanumeric characters to one underscore.
func AnchorID(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Serialize re-emits an outline in the delimiter format understood by Parse.
// Parsing the serialized text yields an equal outline for any outline with
// at least one module and one lesson per module.
func Serialize(o *Outline) string {
	var b strings.Builder
	b.WriteString(tokCourseTitle + " " + o.CourseTitle + "\n")
	if o.CourseOverview != "" {
		b.WriteString(tokCourseOverview + " " + o.CourseOverview + "\n")
	}
	for _, m := range o.Modules {
		b.WriteString(tokModuleStart + "\n")
		b.WriteString(tokModuleTitle + " " + m.ModuleTitle + "\n")
		for _, l := range m.Lessons {
			b.WriteString(tokLessonStart + "\n")
			b.WriteString(tokLessonTitle + " " + l.LessonTitle + "\n")
			b.WriteString(tokLearningObjective + " " + l.LearningObjective + "\n")
			b.WriteString(tokLessonEnd + "\n")
		}
		b.WriteString(tokModuleEnd + "\n")
	}
	return b.String()
}
