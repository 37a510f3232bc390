package extrasafe

import (
	"errors"
	"sort"
	"testing"
)

func TestAllowFileReadDeduplicates(t *testing.T) {
	s := NewSystemIO()
	var err error
	for _, fd := range []int{5, 3, 5, 9, 3} {
		s, err = s.AllowFileRead(fd)
		if err != nil {
			t.Fatalf("AllowFileRead(%d): %v", fd, err)
		}
	}
	want := []int{3, 5, 9}
	if len(s.rd) != len(want) {
		t.Fatalf("expected descriptors %v, got %v", want, s.rd)
	}
	for i := range want {
		if s.rd[i] != want[i] {
			t.Fatalf("expected descriptors %v, got %v", want, s.rd)
		}
	}
	if !sort.IntsAreSorted(s.rd) {
		t.Errorf("descriptor list %v is not sorted", s.rd)
	}
}

func TestAllowFileReadRejectsNegative(t *testing.T) {
	s, err := NewSystemIO().AllowFileRead(7)
	if err != nil {
		t.Fatal(err)
	}
	for _, fd := range []int{-1, -7} {
		got, err := s.AllowFileRead(fd)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("AllowFileRead(%d): expected ErrInvalidArgument, got %v", fd, err)
		}
		if !Equal(got, s) {
			t.Errorf("AllowFileRead(%d): rule set changed on failure: %s != %s", fd, got, s)
		}
	}
}

func TestAllowFileWriteIndependentOfRead(t *testing.T) {
	s, err := NewSystemIO().AllowFileRead(4)
	if err != nil {
		t.Fatal(err)
	}
	s, err = s.AllowFileWrite(4)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.rd) != 1 || len(s.wr) != 1 {
		t.Errorf("expected one descriptor in each list, got rd=%v wr=%v", s.rd, s.wr)
	}
}

func TestEqualAcrossDescriptorOrder(t *testing.T) {
	build := func(fds ...int) SystemIO {
		s := NewSystemIO().AllowRead()
		var err error
		for _, fd := range fds {
			s, err = s.AllowFileWrite(fd)
			if err != nil {
				t.Fatalf("AllowFileWrite(%d): %v", fd, err)
			}
		}
		return s
	}
	a := build(1, 2, 3)
	b := build(3, 1, 2)
	if !Equal(a, b) {
		t.Errorf("expected %s and %s to be equal", a, b)
	}
	if Hash(a) != Hash(b) {
		t.Errorf("expected equal hashes, got %#x and %#x", Hash(a), Hash(b))
	}
}

func TestBuilderDoesNotMutateStoredCopy(t *testing.T) {
	base, err := NewSystemIO().AllowFileRead(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := New().Enable(base)

	derived, err := base.AllowFileRead(8)
	if err != nil {
		t.Fatal(err)
	}
	stored := ctx.RuleSets()[0]
	if !Equal(stored, base) {
		t.Errorf("stored copy %s changed, expected %s", stored, base)
	}
	if Equal(stored, derived) {
		t.Errorf("stored copy %s unexpectedly picked up later builder call", stored)
	}
}

func TestSystemIOEverything(t *testing.T) {
	s := SystemIOEverything()
	if s.flags != ioAllFlags {
		t.Errorf("expected all flags set, got %#x", uint32(s.flags))
	}
	if len(s.rd) != 0 || len(s.wr) != 0 {
		t.Errorf("expected empty descriptor lists, got rd=%v wr=%v", s.rd, s.wr)
	}
}
