//go:build linux

package capabilities

import (
	"strings"
	"testing"

	"github.com/syndtr/gocapability/capability"
)

func TestParseProcPIDStatus(t *testing.T) {
	const status = `Name:	cat
Umask:	0022
State:	R (running)
CapInh:	0000000000000000
CapPrm:	0000003fffffffff
CapEff:	0000003fffffffff
CapBnd:	0000003fffffffff
CapAmb:	0000000000000000
NoNewPrivs:	0
`
	caps, err := parseProcPIDStatus(strings.NewReader(status))
	if err != nil {
		t.Fatal(err)
	}
	if got := caps[capability.EFFECTIVE]; got != 0x3fffffffff {
		t.Errorf("expected effective bitmap 0x3fffffffff, got %#x", got)
	}
	if got := caps[capability.AMBIENT]; got != 0 {
		t.Errorf("expected empty ambient set, got %#x", got)
	}
}

func TestParseProcPIDStatusBadLine(t *testing.T) {
	_, err := parseProcPIDStatus(strings.NewReader("CapEff:	zzz\n"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestFromBitmap(t *testing.T) {
	caps := fromBitmap(1 << uint(capability.CAP_CHOWN))
	if len(caps) != 1 {
		t.Fatalf("expected exactly one capability, got %v", caps)
	}
	if _, ok := caps["CAP_CHOWN"]; !ok {
		t.Errorf("expected CAP_CHOWN, got %v", caps)
	}
}

func TestCurrent(t *testing.T) {
	if _, err := Current(); err != nil {
		t.Fatal(err)
	}
}

func TestKnownCapabilities(t *testing.T) {
	known := KnownCapabilities()
	if len(known) == 0 {
		t.Fatal("expected a non-empty capability list")
	}
	found := false
	for _, name := range known {
		if name == "CAP_CHOWN" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CAP_CHOWN in %v", known)
	}
}
