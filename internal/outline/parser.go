package outline

import (
	"errors"
	"strings"
)

// Delimiter tokens the LLM is instructed to emit. The parser does literal
// token matching, not a grammar: model output is frequently sloppy and the
// recovery policy is to drop whatever cannot be bounded by markers.
const (
	tokCourseTitle       = "COURSE_TITLE:"
	tokCourseOverview    = "COURSE_OVERVIEW:"
	tokModuleStart       = "---MODULE_START---"
	tokModuleEnd         = "---MODULE_END---"
	tokLessonStart       = "---LESSON_START---"
	tokLessonEnd         = "---LESSON_END---"
	tokModuleTitle       = "MODULE_TITLE:"
	tokLessonTitle       = "LESSON_TITLE:"
	tokLearningObjective = "LEARNING_OBJECTIVE:"
)

// ErrNoModules indicates the text contained no parseable module, i.e. the
// model produced unusable output. Callers treat this as a generation
// failure, distinct from transport errors.
var ErrNoModules = errors.New("outline contains no parseable modules")

// parser states
type parseState int

const (
	stateAwaitTitle   parseState = iota // before the first module marker
	stateModuleHeader                   // inside a module, before its first lesson
	stateLessonBody                     // inside a lesson
	stateAfterLesson                    // lesson closed, module still open
	stateSkipModule                     // module closed, waiting for the next one
)

// structural tokens that drive state transitions, in match priority order
var structuralTokens = []string{tokModuleStart, tokModuleEnd, tokLessonStart, tokLessonEnd}

// Parse turns a delimiter-formatted text blob into an Outline. It never
// panics on malformed input: incomplete lessons and modules are silently
// dropped. An input yielding zero modules returns ErrNoModules.
func Parse(raw string) (*Outline, error) {
	p := &machine{out: &Outline{}}
	rest := raw
	for {
		idx, tok := nextToken(rest)
		if idx < 0 {
			p.text(rest)
			break
		}
		p.text(rest[:idx])
		p.token(tok)
		rest = rest[idx+len(tok):]
	}
	p.finish()

	if len(p.out.Modules) == 0 {
		return nil, ErrNoModules
	}
	return p.out, nil
}

// nextToken finds the earliest structural token in s.
// Returns (-1, "") when none remain.
func nextToken(s string) (int, string) {
	best := -1
	var bestTok string
	for _, tok := range structuralTokens {
		if idx := strings.Index(s, tok); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestTok = tok
		}
	}
	return best, bestTok
}

// machine is the token state machine described above. It accumulates raw
// text for the current region into buf and converts regions into model
// values at transition points.
type machine struct {
	state  parseState
	out    *Outline
	buf    strings.Builder
	module *Module
}

func (m *machine) text(s string) {
	// Text between a closing marker and the next opening marker carries no
	// information; everything else accumulates into the current region.
	if m.state == stateAfterLesson || m.state == stateSkipModule {
		return
	}
	m.buf.WriteString(s)
}

func (m *machine) token(tok string) {
	switch m.state {
	case stateAwaitTitle:
		if tok == tokModuleStart {
			m.finishPreamble()
			m.openModule()
		} else {
			// stray marker before the first module: keep it as literal
			// preamble text, matching split-on-MODULE_START semantics
			m.buf.WriteString(tok)
		}
	case stateModuleHeader:
		switch tok {
		case tokLessonStart:
			m.module.ModuleTitle = stripField(m.buf.String(), tokModuleTitle)
			m.openLesson()
		case tokModuleEnd:
			m.dropModule() // closed with zero lessons
		case tokModuleStart:
			m.dropModule()
			m.openModule()
		default:
			m.buf.WriteString(tok)
		}
	case stateLessonBody:
		switch tok {
		case tokLessonEnd:
			m.finishLesson()
			m.state = stateAfterLesson
		case tokLessonStart:
			m.finishLesson()
			m.openLesson()
		case tokModuleEnd:
			m.finishLesson()
			m.finishModule()
		case tokModuleStart:
			m.finishLesson()
			m.finishModule()
			m.openModule()
		}
	case stateAfterLesson:
		switch tok {
		case tokLessonStart:
			m.openLesson()
		case tokModuleEnd:
			m.finishModule()
		case tokModuleStart:
			m.finishModule()
			m.openModule()
		}
	case stateSkipModule:
		if tok == tokModuleStart {
			m.openModule()
		}
	}
}

// finish handles truncated input: a lesson or module missing its trailing
// delimiter is still kept if its content parsed.
func (m *machine) finish() {
	switch m.state {
	case stateAwaitTitle:
		m.finishPreamble()
	case stateModuleHeader:
		m.dropModule()
	case stateLessonBody:
		m.finishLesson()
		m.finishModule()
	case stateAfterLesson:
		m.finishModule()
	}
}

func (m *machine) finishPreamble() {
	pre := m.buf.String()
	title, overview := "", ""
	if idx := strings.Index(pre, tokCourseOverview); idx >= 0 {
		overview = strings.TrimSpace(pre[idx+len(tokCourseOverview):])
		pre = pre[:idx]
	}
	if idx := strings.Index(pre, tokCourseTitle); idx >= 0 {
		title = strings.TrimSpace(pre[idx+len(tokCourseTitle):])
	}
	m.out.CourseTitle = title
	m.out.CourseOverview = overview
	m.buf.Reset()
}

func (m *machine) openModule() {
	m.module = &Module{}
	m.buf.Reset()
	m.state = stateModuleHeader
}

func (m *machine) dropModule() {
	m.module = nil
	m.buf.Reset()
	m.state = stateSkipModule
}

func (m *machine) finishModule() {
	if m.module != nil && len(m.module.Lessons) > 0 {
		m.out.Modules = append(m.out.Modules, *m.module)
	}
	m.dropModule()
}

func (m *machine) openLesson() {
	m.buf.Reset()
	m.state = stateLessonBody
}

// finishLesson converts the buffered lesson region into a Lesson. A region
// without a learning-objective marker is discarded.
func (m *machine) finishLesson() {
	region := m.buf.String()
	m.buf.Reset()

	idx := strings.Index(region, tokLearningObjective)
	if idx < 0 {
		return
	}
	// The objective marker is the only hard requirement; a missing or empty
	// title still yields a lesson, it just renders with a bare label.
	title := stripField(region[:idx], tokLessonTitle)
	objective := strings.TrimSpace(region[idx+len(tokLearningObjective):])
	m.module.Lessons = append(m.module.Lessons, Lesson{
		LessonTitle:       title,
		LearningObjective: objective,
	})
}

// stripField removes everything up to and including the field marker, or
// just trims when the marker is absent.
func stripField(text, marker string) string {
	if idx := strings.Index(text, marker); idx >= 0 {
		text = text[idx+len(marker):]
	}
	return strings.TrimSpace(text)
}
