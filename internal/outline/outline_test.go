package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayLabels(t *testing.T) {
	assert.Equal(t, "Module 2: Baking Day", ModuleLabel(2, "Baking Day"))
	assert.Equal(t, "Lesson 2.3: Scoring Patterns", LessonLabel(2, 3, "Scoring Patterns"))
}

func TestAnchorID(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{"module label", "Module 1: Getting Started", "module_1_getting_started"},
		{"lesson label", "Lesson 1.2: Feeding Schedules", "lesson_1_2_feeding_schedules"},
		{"punctuation collapsed", "Lesson 3.1: Q&A -- What's Next?", "lesson_3_1_q_a_what_s_next"},
		{"leading and trailing symbols trimmed", "  ...Intro!  ", "intro"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnchorID(tt.label))
		})
	}
}

func TestLessonCount(t *testing.T) {
	o := &Outline{Modules: []Module{
		{Lessons: make([]Lesson, 2)},
		{Lessons: make([]Lesson, 3)},
	}}
	assert.Equal(t, 5, o.LessonCount())
}
