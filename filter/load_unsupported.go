//go:build !linux || !cgo || !seccomp

package filter

import "errors"

// ErrSeccompNotSupported is returned by Load on builds without seccomp
// support compiled in.
var ErrSeccompNotSupported = errors.New("filter: seccomp is not supported in this build")

// Load is a stub; rules can still be composed and inspected, but not
// installed.
func (f *Filter) Load(allThreads bool) error {
	return ErrSeccompNotSupported
}

// Version reports the linked libseccomp version; all zero without seccomp
// support.
func Version() (major, minor, micro uint) {
	return 0, 0, 0
}
