package extrasafe

import (
	"golang.org/x/sys/unix"

	"github.com/Kijewski/goextrasafe/filter"
)

const (
	netAllowRunningTCPClients flagSet = 1 << iota
	netAllowRunningTCPServers
	netAllowRunningUDPSockets
	netAllowRunningUnixClients
	netAllowRunningUnixServers
	netAllowStartTCPClients
	netAllowStartTCPServers
	netAllowStartUDPServers
	netAllowStartUnixServers
)

// I/O on sockets that already exist.
var socketIOSyscalls = []string{
	"read",
	"write",
	"readv",
	"writev",
	"recvfrom",
	"sendto",
	"recvmsg",
	"sendmsg",
	"poll",
	"ppoll",
	"epoll_create1",
	"epoll_ctl",
	"epoll_wait",
	"epoll_pwait",
	"getsockname",
	"getpeername",
	"getsockopt",
	"setsockopt",
	"shutdown",
}

// Networking controls socket use. The "running" permissions cover I/O on
// sockets the process already owns (e.g. inherited from a supervisor);
// the "start" permissions additionally allow creating new ones.
type Networking struct {
	flags flagSet
}

func NewNetworking() Networking { return Networking{} }

func (n Networking) Kind() Kind     { return KindNetworking }
func (n Networking) String() string { return flagString(KindNetworking, n.flags) }

func (n Networking) data() ruleData {
	return ruleData{kind: KindNetworking, flags: n.flags}
}

// AllowRunningTCPClients permits I/O on already-connected TCP sockets.
func (n Networking) AllowRunningTCPClients() Networking {
	n.flags |= netAllowRunningTCPClients
	return n
}

// AllowRunningTCPServers permits accepting and serving connections on an
// already-listening TCP socket.
func (n Networking) AllowRunningTCPServers() Networking {
	n.flags |= netAllowRunningTCPServers
	return n
}

// AllowRunningUDPSockets permits I/O on already-bound UDP sockets.
func (n Networking) AllowRunningUDPSockets() Networking {
	n.flags |= netAllowRunningUDPSockets
	return n
}

// AllowRunningUnixClients permits I/O on already-connected unix sockets.
func (n Networking) AllowRunningUnixClients() Networking {
	n.flags |= netAllowRunningUnixClients
	return n
}

// AllowRunningUnixServers permits accepting connections on an
// already-listening unix socket.
func (n Networking) AllowRunningUnixServers() Networking {
	n.flags |= netAllowRunningUnixServers
	return n
}

// AllowStartTCPClients permits creating stream sockets and connecting
// them.
func (n Networking) AllowStartTCPClients() Networking {
	n.flags |= netAllowStartTCPClients
	return n
}

// AllowStartTCPServers permits binding and listening on new TCP sockets.
// Starting a server in a hardened process is rarely intended, so the
// underlying permission is confirmed-dangerous; calling this builder is
// the confirmation.
func (n Networking) AllowStartTCPServers() Networking {
	n.flags |= netAllowStartTCPServers
	return n
}

// AllowStartUDPServers permits binding new UDP sockets. Like
// AllowStartTCPServers this enables the confirmed-dangerous permission.
func (n Networking) AllowStartUDPServers() Networking {
	n.flags |= netAllowStartUDPServers
	return n
}

// AllowStartUnixServers permits binding and listening on new unix
// sockets. Like AllowStartTCPServers this enables the
// confirmed-dangerous permission.
func (n Networking) AllowStartUnixServers() Networking {
	n.flags |= netAllowStartUnixServers
	return n
}

// socketCond matches socket(2) calls whose type argument (modulo
// SOCK_NONBLOCK/SOCK_CLOEXEC) is sockType.
func socketCond(sockType uint64) []filter.Condition {
	return []filter.Condition{{
		Index:    1,
		Op:       filter.MaskEqualTo,
		Value:    0xff, // strip SOCK_NONBLOCK and SOCK_CLOEXEC
		ValueTwo: sockType,
	}}
}

// unixSocketCond matches socket(2) calls creating AF_UNIX sockets.
func unixSocketCond() []filter.Condition {
	return []filter.Condition{{
		Index: 0,
		Op:    filter.EqualTo,
		Value: unix.AF_UNIX,
	}}
}

func (n Networking) enableTo(f *filter.Filter, origin string) error {
	running := n.flags & (netAllowRunningTCPClients | netAllowRunningTCPServers |
		netAllowRunningUDPSockets | netAllowRunningUnixClients | netAllowRunningUnixServers)
	if running != 0 {
		if err := f.Allow(origin, socketIOSyscalls...); err != nil {
			return err
		}
	}
	if n.flags.has(netAllowRunningTCPServers) || n.flags.has(netAllowRunningUnixServers) {
		if err := f.Allow(origin, "accept", "accept4"); err != nil {
			return err
		}
	}

	if n.flags.has(netAllowStartTCPClients) {
		if err := f.AllowConditional(origin, "socket", socketCond(unix.SOCK_STREAM)); err != nil {
			return err
		}
		if err := f.Allow(origin, "connect"); err != nil {
			return err
		}
	}
	if n.flags.has(netAllowStartTCPServers) {
		if err := f.AllowConditional(origin, "socket", socketCond(unix.SOCK_STREAM)); err != nil {
			return err
		}
		if err := f.AllowDangerous(origin, "bind", "listen"); err != nil {
			return err
		}
	}
	if n.flags.has(netAllowStartUDPServers) {
		if err := f.AllowConditional(origin, "socket", socketCond(unix.SOCK_DGRAM)); err != nil {
			return err
		}
		if err := f.AllowDangerous(origin, "bind"); err != nil {
			return err
		}
	}
	if n.flags.has(netAllowStartUnixServers) {
		if err := f.AllowConditional(origin, "socket", unixSocketCond()); err != nil {
			return err
		}
		if err := f.AllowDangerous(origin, "bind", "listen"); err != nil {
			return err
		}
	}
	return nil
}
