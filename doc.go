// Package extrasafe lets a process make itself more safe by composing an
// ordered set of syscall allow-list rules and loading them as a seccomp
// filter, either for the calling thread or for every thread in the process.
//
// Rules are bundled per functional category (basic runtime capabilities,
// fork/exec, threads, networking, system I/O, time). Each category is a
// value type with chainable Allow* builders; a SafetyContext collects the
// built rule sets and folds them into a single filter on apply. Loading a
// filter is one-way: the kernel only ever narrows the set of permitted
// syscalls, so re-applying a context is safe but never undoes a prior
// restriction.
//
// The companion packages system and pidfile cover the other two startup
// concerns: irreversible privilege restriction and a single-instance pid
// file lock.
package extrasafe
