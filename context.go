package extrasafe

import (
	"fmt"

	"github.com/Kijewski/goextrasafe/filter"
)

// PolicyError reports that a rule set could not be folded into the
// composed filter. Kind names the offending category.
type PolicyError struct {
	Kind Kind
	Err  error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("extrasafe: policy %s could not be applied: %v", e.Kind, e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// SafetyContext is an ordered collection of rule sets that can be
// compiled into a seccomp filter and applied to the current thread or to
// all threads of the process.
//
// Rule sets are folded in insertion order; enabling the same category
// twice is allowed and each occurrence contributes independently. Nothing
// is loaded into the kernel until one of the apply methods is called, and
// each apply rebuilds the filter from the rule sets stored at that
// moment. Because seccomp filters stack and only ever narrow, applying a
// context repeatedly is safe but never widens an earlier restriction.
type SafetyContext struct {
	rules []RuleSet
}

// New returns an empty SafetyContext.
func New() *SafetyContext {
	return &SafetyContext{}
}

// Enable appends a copy of r and returns the context for chaining.
func (c *SafetyContext) Enable(r RuleSet) *SafetyContext {
	c.rules = append(c.rules, r)
	return c
}

// Len returns the number of enabled rule sets.
func (c *SafetyContext) Len() int { return len(c.rules) }

// RuleSets returns the enabled rule sets in insertion order.
func (c *SafetyContext) RuleSets() []RuleSet {
	out := make([]RuleSet, len(c.rules))
	copy(out, c.rules)
	return out
}

// compose folds every rule set, left to right, into a fresh filter. The
// fold aborts at the first failure, wrapped as a *PolicyError.
func (c *SafetyContext) compose() (*filter.Filter, error) {
	f := filter.New()
	for i, r := range c.rules {
		// Each rule set is an independent contributor to conflict
		// detection, even when two of them share a category.
		origin := fmt.Sprintf("%s#%d", r.Kind(), i)
		if err := r.enableTo(f, origin); err != nil {
			return nil, &PolicyError{Kind: r.Kind(), Err: err}
		}
	}
	return f, nil
}

// ApplyToCurrentThread compiles the context's rules and loads the filter
// for the calling thread only.
func (c *SafetyContext) ApplyToCurrentThread() error {
	f, err := c.compose()
	if err != nil {
		return err
	}
	return f.Load(false)
}

// ApplyToAllThreads compiles the context's rules and loads the filter for
// every thread in the process.
func (c *SafetyContext) ApplyToAllThreads() error {
	f, err := c.compose()
	if err != nil {
		return err
	}
	return f.Load(true)
}
