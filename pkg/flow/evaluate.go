package flow

import "strings"

// ScriptEvaluator substitutes ${...} expressions in a string.
type ScriptEvaluator interface {
	EvaluateScripts(s string) (string, error)
}

// Evaluator applies a ScriptEvaluator across command fields. The first
// evaluation error is kept and every later call becomes a no-op, so a
// command's Evaluate method can stay free of error plumbing.
type Evaluator struct {
	se  ScriptEvaluator
	err error
}

// NewEvaluator wraps se.
func NewEvaluator(se ScriptEvaluator) *Evaluator {
	return &Evaluator{se: se}
}

// Err returns the first evaluation error.
func (e *Evaluator) Err() error { return e.err }

// String evaluates one string.
func (e *Evaluator) String(s string) string {
	if e == nil || e.se == nil || e.err != nil || !strings.Contains(s, "${") {
		return s
	}
	out, err := e.se.EvaluateScripts(s)
	if err != nil {
		e.err = err
		return s
	}
	return out
}

// StringPtr evaluates an optional string.
func (e *Evaluator) StringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := e.String(*s)
	return &v
}

// Strings evaluates each element into a new slice.
func (e *Evaluator) Strings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = e.String(s)
	}
	return out
}

// Map evaluates values (not keys) into a new map.
func (e *Evaluator) Map(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = e.String(v)
	}
	return out
}

// EvaluateCommand returns the evaluated form of cmd or the first error.
func EvaluateCommand(cmd Command, se ScriptEvaluator) (Command, error) {
	e := NewEvaluator(se)
	out := cmd.Evaluate(e)
	if e.Err() != nil {
		return nil, e.Err()
	}
	return out, nil
}

// EvaluateCondition returns the evaluated form of cond or the first error.
func EvaluateCondition(cond *Condition, se ScriptEvaluator) (*Condition, error) {
	e := NewEvaluator(se)
	out := cond.Evaluate(e)
	if e.Err() != nil {
		return nil, e.Err()
	}
	return out, nil
}
