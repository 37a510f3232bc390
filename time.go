package extrasafe

import "github.com/Kijewski/goextrasafe/filter"

const timeAllowGettime flagSet = 1 << iota

// Time controls clock access. Reading the clock is harmless for most
// programs but still gated, since precise timing is an ingredient of
// side-channel attacks.
type Time struct {
	flags flagSet
}

func NewTime() Time { return Time{} }

func (t Time) Kind() Kind     { return KindTime }
func (t Time) String() string { return flagString(KindTime, t.flags) }

func (t Time) data() ruleData {
	return ruleData{kind: KindTime, flags: t.flags}
}

// AllowGettime permits reading clocks.
func (t Time) AllowGettime() Time {
	t.flags |= timeAllowGettime
	return t
}

func (t Time) enableTo(f *filter.Filter, origin string) error {
	if t.flags.has(timeAllowGettime) {
		return f.Allow(origin, "clock_gettime", "clock_getres", "gettimeofday", "time")
	}
	return nil
}
