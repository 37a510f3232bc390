package extrasafe

import "github.com/Kijewski/goextrasafe/filter"

// Syscalls almost every program needs to start up and shut down: memory
// management, futexes, signal return, process exit.
var baselineSyscalls = []string{
	"brk",
	"exit",
	"exit_group",
	"futex",
	"getpid",
	"getrandom",
	"gettid",
	"mmap",
	"mprotect",
	"mremap",
	"munmap",
	"restart_syscall",
	"rt_sigaction",
	"rt_sigprocmask",
	"rt_sigreturn",
	"sched_yield",
	"sigaltstack",
}

var forkExecSyscalls = []string{
	"fork",
	"vfork",
	"clone",
	"clone3",
	"execve",
	"execveat",
	"wait4",
	"waitid",
}

// BasicCapabilities allows the baseline syscalls needed by virtually any
// process. It has no builder flags: enabling it enables the whole set.
type BasicCapabilities struct{}

func NewBasicCapabilities() BasicCapabilities { return BasicCapabilities{} }

func (BasicCapabilities) Kind() Kind     { return KindBasicCapabilities }
func (BasicCapabilities) String() string { return flagString(KindBasicCapabilities, 0) }

func (b BasicCapabilities) data() ruleData {
	return ruleData{kind: KindBasicCapabilities}
}

func (b BasicCapabilities) enableTo(f *filter.Filter, origin string) error {
	return f.Allow(origin, baselineSyscalls...)
}

// ForkAndExec allows creating child processes and replacing the process
// image. Like BasicCapabilities it carries no flags.
type ForkAndExec struct{}

func NewForkAndExec() ForkAndExec { return ForkAndExec{} }

func (ForkAndExec) Kind() Kind     { return KindForkAndExec }
func (ForkAndExec) String() string { return flagString(KindForkAndExec, 0) }

func (e ForkAndExec) data() ruleData {
	return ruleData{kind: KindForkAndExec}
}

func (e ForkAndExec) enableTo(f *filter.Filter, origin string) error {
	return f.Allow(origin, forkExecSyscalls...)
}
