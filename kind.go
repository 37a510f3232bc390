package extrasafe

// Kind identifies the functional category a RuleSet belongs to.
type Kind int

const (
	KindBasicCapabilities Kind = iota
	KindForkAndExec
	KindThreads
	KindNetworking
	KindSystemIO
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBasicCapabilities:
		return "BasicCapabilities"
	case KindForkAndExec:
		return "ForkAndExec"
	case KindThreads:
		return "Threads"
	case KindNetworking:
		return "Networking"
	case KindSystemIO:
		return "SystemIO"
	case KindTime:
		return "Time"
	default:
		return "Unknown"
	}
}
