// Package filter accumulates syscall allow-list rules and compiles them
// into a kernel seccomp filter via libseccomp.
//
// A Filter starts out maximally restrictive: loading an empty filter
// denies every syscall with EPERM. Rule sets contribute either
// unconditional rules (the syscall is always permitted) or conditional
// rules (permitted only when an argument matches). The two cannot be mixed
// for one syscall across independent contributors, since the unconditional
// rule would silently make the condition meaningless.
package filter

import (
	"errors"
	"fmt"
)

// Op is an argument comparison operator for a conditional rule.
type Op int

const (
	EqualTo Op = iota
	NotEqualTo
	GreaterThan
	GreaterThanOrEqualTo
	LessThan
	LessThanOrEqualTo
	// MaskEqualTo matches when argument&Value == ValueTwo.
	MaskEqualTo
)

// Condition restricts a rule to syscall invocations whose argument at
// Index satisfies the comparison. For MaskEqualTo, Value is the mask and
// ValueTwo the expected result; for every other operator only Value is
// used.
type Condition struct {
	Index    uint
	Value    uint64
	ValueTwo uint64
	Op       Op
}

// ErrNeedsConfirmation is returned when a guarded call names a syscall
// from the dangerous list. Callers that have obtained explicit
// confirmation use the AllowDangerous variants instead.
var ErrNeedsConfirmation = errors.New("filter: dangerous syscall requires explicit confirmation")

// ConflictError reports that a rule could not be merged because another
// contributor already added an incompatible rule for the same syscall.
type ConflictError struct {
	Syscall string
	Origin  string // contributor whose rule was rejected
	Prior   string // contributor that added the existing rule
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("filter: %s rule for %q conflicts with %s rule for the same syscall",
		e.Origin, e.Syscall, e.Prior)
}

// Syscalls whose unguarded enablement is refused. Enabling any of these
// opens an obvious escape hatch (arbitrary file access, listening
// sockets, blocking the thread), so the rule-set layer has to go through
// the confirmed AllowDangerous path.
var dangerous = map[string]bool{
	"open":            true,
	"openat":          true,
	"openat2":         true,
	"creat":           true,
	"bind":            true,
	"listen":          true,
	"nanosleep":       true,
	"clock_nanosleep": true,
}

type condRule struct {
	origin string
	conds  []Condition
}

type entry struct {
	// simpleOrigin is the contributor of an unconditional rule, or ""
	// if the syscall only has conditional rules.
	simpleOrigin string
	cond         []condRule
}

// Filter is an accumulating syscall policy. The zero value is not usable;
// construct with New.
type Filter struct {
	entries map[string]*entry
	order   []string
}

func New() *Filter {
	return &Filter{entries: make(map[string]*entry)}
}

func (f *Filter) entry(name string) *entry {
	e := f.entries[name]
	if e == nil {
		e = &entry{}
		f.entries[name] = e
		f.order = append(f.order, name)
	}
	return e
}

// Allow adds unconditional rules permitting the named syscalls on behalf
// of origin. Syscalls on the dangerous list are refused with
// ErrNeedsConfirmation.
func (f *Filter) Allow(origin string, names ...string) error {
	for _, name := range names {
		if dangerous[name] {
			return fmt.Errorf("%w: %q", ErrNeedsConfirmation, name)
		}
		if err := f.allow(origin, name); err != nil {
			return err
		}
	}
	return nil
}

// AllowDangerous is Allow without the dangerous-list check. The rule-set
// layer calls it only for permissions whose builder carries the explicit
// confirmation.
func (f *Filter) AllowDangerous(origin string, names ...string) error {
	for _, name := range names {
		if err := f.allow(origin, name); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filter) allow(origin, name string) error {
	e := f.entry(name)
	if e.simpleOrigin != "" {
		// Already allowed unconditionally; nothing to add.
		return nil
	}
	for _, c := range e.cond {
		if c.origin != origin {
			return &ConflictError{Syscall: name, Origin: origin, Prior: c.origin}
		}
	}
	// An unconditional rule from the same contributor dominates its own
	// conditional rules.
	e.cond = nil
	e.simpleOrigin = origin
	return nil
}

// AllowConditional adds a rule permitting name only when every condition
// holds. If origin itself already allowed the syscall unconditionally the
// call is a no-op; if another contributor did, the merge fails.
func (f *Filter) AllowConditional(origin, name string, conds []Condition) error {
	if dangerous[name] {
		return fmt.Errorf("%w: %q", ErrNeedsConfirmation, name)
	}
	return f.allowConditional(origin, name, conds)
}

// AllowDangerousConditional is AllowConditional without the
// dangerous-list check.
func (f *Filter) AllowDangerousConditional(origin, name string, conds []Condition) error {
	return f.allowConditional(origin, name, conds)
}

func (f *Filter) allowConditional(origin, name string, conds []Condition) error {
	e := f.entry(name)
	if e.simpleOrigin != "" {
		if e.simpleOrigin == origin {
			return nil
		}
		return &ConflictError{Syscall: name, Origin: origin, Prior: e.simpleOrigin}
	}
	cc := make([]Condition, len(conds))
	copy(cc, conds)
	e.cond = append(e.cond, condRule{origin: origin, conds: cc})
	return nil
}

// Len returns the number of distinct syscalls with at least one rule.
func (f *Filter) Len() int { return len(f.order) }

// Syscalls returns the syscall names in the order their first rule was
// added. Loading iterates in this order, keeping compiled filters
// deterministic for a given composition.
func (f *Filter) Syscalls() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}
