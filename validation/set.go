// Package validation records typed pass/fail findings for identity
// operations.
//
// Every engine result carries a Set. Business failures are recorded as
// findings and returned normally; they are never raised as errors. A Set is
// append-only: findings are accumulated for the lifetime of one operation and
// never removed or overwritten.
package validation

import "reflect"

// Level classifies the severity of a finding.
type Level int

const (
	// Warning marks a recoverable finding, such as a retryable two-factor
	// code mismatch.
	Warning Level = iota + 1
	// Error marks a finding that invalidates the operation's result.
	Error
)

// String returns the level name used in logs and serialized findings.
func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Finding is one recorded validation outcome.
type Finding struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Set is an ordered, append-only sequence of findings. The zero value is
// ready to use. A Set is owned by the result that carries it and is created
// fresh per operation; it must not be shared across operations.
type Set struct {
	items []Finding
}

// NewSet returns an empty finding set.
func NewSet() *Set {
	return &Set{}
}

// Items returns the recorded findings in insertion order.
func (s *Set) Items() []Finding {
	return s.items
}

// Valid reports whether no findings have been recorded.
func (s *Set) Valid() bool {
	return len(s.items) == 0
}

// Add records a finding.
func (s *Set) Add(level Level, message string) {
	s.items = append(s.items, Finding{Level: level, Message: message})
}

// ValidateTrue records a finding when value is false and reports whether the
// check passed.
func (s *Set) ValidateTrue(value bool, level Level, message string) bool {
	if !value {
		s.Add(level, message)
	}
	return value
}

// ValidateFalse records a finding when value is true and reports whether the
// check passed.
func (s *Set) ValidateFalse(value bool, level Level, message string) bool {
	if value {
		s.Add(level, message)
	}
	return !value
}

// ValidateNotNil records a finding when value is nil and reports whether the
// check passed. Typed nil pointers, maps, and slices count as nil.
func (s *Set) ValidateNotNil(value any, level Level, message string) bool {
	if isNil(value) {
		s.Add(level, message)
		return false
	}
	return true
}

// Append adds the given findings to the set, preserving their order.
func (s *Set) Append(findings []Finding) {
	s.items = append(s.items, findings...)
}

// AppendSet adds every finding from other. A nil other is a no-op.
func (s *Set) AppendSet(other *Set) {
	if other == nil {
		return
	}
	s.items = append(s.items, other.items...)
}

// HasErrors reports whether at least one Error-level finding was recorded.
func (s *Set) HasErrors() bool {
	for _, f := range s.items {
		if f.Level == Error {
			return true
		}
	}
	return false
}

// Messages returns the finding messages in insertion order.
func (s *Set) Messages() []string {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]string, len(s.items))
	for i, f := range s.items {
		out[i] = f.Message
	}
	return out
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
