package explorer

import "github.com/damacus/dataset-explorer/internal/services"

// Outcome is the single main-area result of an exploration.
type Outcome int

const (
	// OutcomeInert means no dataset id was given and nothing was attempted.
	OutcomeInert Outcome = iota
	OutcomeFiles
	OutcomeEmpty
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFiles:
		return "files"
	case OutcomeEmpty:
		return "empty"
	case OutcomeError:
		return "error"
	default:
		return "inert"
	}
}

type FailureKind int

const (
	FailureMissingCredential FailureKind = iota + 1
	FailureUpstream
	FailureListing
	FailureRendering
)

func (k FailureKind) String() string {
	switch k {
	case FailureMissingCredential:
		return "missing_credential"
	case FailureUpstream:
		return "upstream"
	case FailureListing:
		return "listing"
	case FailureRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// Failure is a user-visible error. Err is the cause, if any.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Level styles a notice or debug step.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level Level
	Text  string
}

// DebugStep is one line of a debug section. Code steps are shown preformatted.
type DebugStep struct {
	Level Level
	Text  string
	Code  bool
}

type DebugSection struct {
	Title string
	Steps []DebugStep
}

func (s *DebugSection) add(level Level, text string) {
	s.Steps = append(s.Steps, DebugStep{Level: level, Text: text})
}

func (s *DebugSection) code(text string) {
	s.Steps = append(s.Steps, DebugStep{Text: text, Code: true})
}

// Debug is the content of the collapsible debug panel. The Authorization
// header value is always masked.
type Debug struct {
	Headers  []string
	Sections []*DebugSection
}

func (d *Debug) section(title string) *DebugSection {
	s := &DebugSection{Title: title}
	d.Sections = append(d.Sections, s)
	return s
}

// Result is everything one exploration produced.
type Result struct {
	ID         string
	DatasetID  string
	SnapshotID string
	Outcome    Outcome

	Files []services.FileEntry
	// Lines holds one "N. name" line per file, in listing order.
	Lines []string
	// Fallback is set when Lines hold raw entry forms instead of display names.
	Fallback bool

	Failures []Failure
	Notices  []Notice
	Debug    Debug
}

// fail records a failure. Every failure except a rendering one turns the
// outcome into an error; rendering failures keep the file list.
func (r *Result) fail(kind FailureKind, message string, err error) {
	r.Failures = append(r.Failures, Failure{Kind: kind, Message: message, Err: err})
	if kind != FailureRendering {
		r.Outcome = OutcomeError
	}
}

func (r *Result) notice(level Level, text string) {
	r.Notices = append(r.Notices, Notice{Level: level, Text: text})
}

// Failed reports whether a failure of kind was recorded.
func (r *Result) Failed(kind FailureKind) bool {
	for _, f := range r.Failures {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Err returns the cause of the first failure, or nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[0].Err
}
