package prefs

import (
	"strings"

	"github.com/zen-systems/taskgate/pkg/config"
)

// Field names the task metadata a condition can inspect.
type Field string

const (
	FieldSubject  Field = "subject"
	FieldSender   Field = "sender"
	FieldDomain   Field = "domain"
	FieldTaskType Field = "task_type"
)

// Meta is the task metadata rules evaluate against.
type Meta struct {
	Subject  string
	Sender   string
	Domain   string
	TaskType string
}

func (m Meta) field(f Field) string {
	switch f {
	case FieldSubject:
		return m.Subject
	case FieldSender:
		return m.Sender
	case FieldDomain:
		return m.Domain
	case FieldTaskType:
		return m.TaskType
	default:
		return ""
	}
}

// Condition is a compiled rule predicate. Parsed once at rule load time and
// evaluated per task without re-parsing.
type Condition interface {
	Match(meta Meta) bool
}

// Contains matches when the field contains any of the terms,
// case-insensitively.
type Contains struct {
	Field Field
	Terms []string
}

func (c Contains) Match(meta Meta) bool {
	value := strings.ToLower(meta.field(c.Field))
	for _, term := range c.Terms {
		if term != "" && strings.Contains(value, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Equals matches on case-insensitive equality.
type Equals struct {
	Field Field
	Value string
}

func (c Equals) Match(meta Meta) bool {
	return strings.EqualFold(meta.field(c.Field), c.Value)
}

// And matches when every child matches.
type And struct {
	Conditions []Condition
}

func (c And) Match(meta Meta) bool {
	for _, child := range c.Conditions {
		if !child.Match(meta) {
			return false
		}
	}
	return len(c.Conditions) > 0
}

// Or matches when any child matches.
type Or struct {
	Conditions []Condition
}

func (c Or) Match(meta Meta) bool {
	for _, child := range c.Conditions {
		if child.Match(meta) {
			return true
		}
	}
	return false
}

// Not inverts its child.
type Not struct {
	Condition Condition
}

func (c Not) Match(meta Meta) bool {
	return c.Condition != nil && !c.Condition.Match(meta)
}

// subjectSubstring is the conservative fallback for unrecognized conditions:
// a plain substring match against the subject.
type subjectSubstring struct {
	text string
}

func (c subjectSubstring) Match(meta Meta) bool {
	return c.text != "" && strings.Contains(strings.ToLower(meta.Subject), strings.ToLower(c.text))
}

// neverMatch is the compiled form of a structurally malformed condition:
// treated as non-matching, never as a fatal error.
type neverMatch struct{}

func (neverMatch) Match(Meta) bool { return false }

// CompileCondition turns the raw config form into a condition tree. It never
// returns an error: an unrecognized kind with usable text falls back to a
// subject substring match, and a malformed condition compiles to one that
// never matches.
func CompileCondition(cc config.ConditionConfig) Condition {
	switch strings.ToLower(strings.TrimSpace(cc.Kind)) {
	case "contains":
		if f, ok := knownField(cc.Field); ok && len(cc.Terms) > 0 {
			return Contains{Field: f, Terms: cc.Terms}
		}
	case "equals":
		if f, ok := knownField(cc.Field); ok && cc.Value != "" {
			return Equals{Field: f, Value: cc.Value}
		}
	case "and":
		if len(cc.All) > 0 {
			return And{Conditions: compileAll(cc.All)}
		}
	case "or":
		if len(cc.Any) > 0 {
			return Or{Conditions: compileAll(cc.Any)}
		}
	case "not":
		if cc.Inner != nil {
			return Not{Condition: CompileCondition(*cc.Inner)}
		}
	}

	if fallback := fallbackText(cc); fallback != "" {
		return subjectSubstring{text: fallback}
	}
	return neverMatch{}
}

func compileAll(configs []config.ConditionConfig) []Condition {
	out := make([]Condition, 0, len(configs))
	for _, cc := range configs {
		out = append(out, CompileCondition(cc))
	}
	return out
}

func fallbackText(cc config.ConditionConfig) string {
	if cc.Raw != "" {
		return cc.Raw
	}
	if cc.Value != "" {
		return cc.Value
	}
	if len(cc.Terms) > 0 {
		return cc.Terms[0]
	}
	return ""
}

func knownField(raw string) (Field, bool) {
	switch Field(strings.ToLower(strings.TrimSpace(raw))) {
	case FieldSubject:
		return FieldSubject, true
	case FieldSender:
		return FieldSender, true
	case FieldDomain:
		return FieldDomain, true
	case FieldTaskType:
		return FieldTaskType, true
	default:
		return "", false
	}
}
