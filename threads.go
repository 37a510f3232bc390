package extrasafe

import "github.com/Kijewski/goextrasafe/filter"

const (
	threadsAllowCreate flagSet = 1 << iota
	threadsAllowSleep
)

// Threads controls thread creation and sleeping. It starts out allowing
// nothing.
type Threads struct {
	flags flagSet
}

func NewThreads() Threads { return Threads{} }

func (t Threads) Kind() Kind     { return KindThreads }
func (t Threads) String() string { return flagString(KindThreads, t.flags) }

func (t Threads) data() ruleData {
	return ruleData{kind: KindThreads, flags: t.flags}
}

// AllowCreate permits spawning new threads.
func (t Threads) AllowCreate() Threads {
	t.flags |= threadsAllowCreate
	return t
}

// AllowSleep permits the thread to sleep. Sleeping can postpone signal
// delivery and makes timing attacks easier, so the underlying permission
// is one of the confirmed-dangerous ones; calling this builder is the
// confirmation.
func (t Threads) AllowSleep() Threads {
	t.flags |= threadsAllowSleep
	return t
}

func (t Threads) enableTo(f *filter.Filter, origin string) error {
	if t.flags.has(threadsAllowCreate) {
		if err := f.Allow(origin, "clone", "clone3", "set_robust_list"); err != nil {
			return err
		}
	}
	if t.flags.has(threadsAllowSleep) {
		if err := f.AllowDangerous(origin, "nanosleep", "clock_nanosleep"); err != nil {
			return err
		}
	}
	return nil
}
