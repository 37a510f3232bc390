package extrasafe

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/Kijewski/goextrasafe/filter"
)

// ErrInvalidArgument is returned by builders that reject their input, such
// as SystemIO.AllowFileRead with a negative file descriptor.
var ErrInvalidArgument = errors.New("extrasafe: invalid argument")

// RuleSet is a bundle of related syscall permissions for one category.
//
// The interface is sealed: the only implementations are the category types
// in this package (BasicCapabilities, ForkAndExec, Threads, Networking,
// SystemIO, Time). All of them are value types whose Allow* builders
// return a modified copy, so a RuleSet stored in a SafetyContext is never
// affected by later builder calls on the original.
type RuleSet interface {
	// Kind reports the category of the rule set.
	Kind() Kind

	String() string

	// enableTo folds the rule set into f, applying the enabled flag
	// transformations in the category's fixed order, then any payload
	// entries. origin identifies this rule set instance to the filter's
	// conflict detection; each enabled rule set gets its own.
	enableTo(f *filter.Filter, origin string) error

	// data exposes the complete state for structural comparison.
	data() ruleData
}

// ruleData is the normalized state of any RuleSet. Two rule sets with the
// same data are interchangeable no matter which builder call sequence
// produced them.
type ruleData struct {
	kind  Kind
	flags flagSet
	rd    []int
	wr    []int
}

// Equal reports whether a and b have identical category, flags and
// payload.
func Equal(a, b RuleSet) bool {
	return Compare(a, b) == 0
}

// Compare orders rule sets structurally: by category, then flags, then
// payload descriptor lists.
func Compare(a, b RuleSet) int {
	da, db := a.data(), b.data()
	if da.kind != db.kind {
		return int(da.kind) - int(db.kind)
	}
	if da.flags != db.flags {
		if da.flags < db.flags {
			return -1
		}
		return 1
	}
	if c := compareInts(da.rd, db.rd); c != 0 {
		return c
	}
	return compareInts(da.wr, db.wr)
}

// Hash returns a structural hash of r. Rule sets that are Equal hash
// identically.
func Hash(r RuleSet) uint64 {
	d := r.data()
	h := fnv.New64a()
	buf := make([]byte, 0, 8)
	put := func(v uint64) {
		buf = buf[:0]
		for i := 0; i < 8; i++ {
			buf = append(buf, byte(v>>(8*i)))
		}
		h.Write(buf)
	}
	put(uint64(d.kind))
	put(uint64(d.flags))
	put(uint64(len(d.rd)))
	for _, fd := range d.rd {
		put(uint64(fd))
	}
	put(uint64(len(d.wr)))
	for _, fd := range d.wr {
		put(uint64(fd))
	}
	return h.Sum64()
}

func compareInts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}

// flagSet is a per-category permission bitset. The valid bits are fixed by
// the category owning it; builders only ever set bits from that category's
// range.
type flagSet uint32

func (f flagSet) has(bit flagSet) bool { return f&bit != 0 }

func flagString(kind Kind, flags flagSet) string {
	return fmt.Sprintf("<%s(%#x)>", kind, uint32(flags))
}
