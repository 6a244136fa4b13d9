package signer

// State is a step of a single signing call
type State int

const (
	StateIdle State = iota
	StateValidating
	StateTransportOpen
	StateResolvingKey
	StateAwaitingDeviceResponse
	StateRepairingSignature
	StateEncoding
	StateDone
	StateFailed
	StateTransportClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateTransportOpen:
		return "transport_open"
	case StateResolvingKey:
		return "resolving_key"
	case StateAwaitingDeviceResponse:
		return "awaiting_device_response"
	case StateRepairingSignature:
		return "repairing_signature"
	case StateEncoding:
		return "encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateTransportClosed:
		return "transport_closed"
	default:
		return "unknown"
	}
}
