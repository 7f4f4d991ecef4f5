package node

import (
	"fmt"

	"github.com/basaltchain/basalt/src/peers"
)

// EventType identifies the kind of a StateEvent.
type EventType uint32

const (
	// Initialized signals that startup checks completed.
	Initialized EventType = iota
	// InitialSync signals that startup completed on a fresh database.
	InitialSync
	// HeadersSynchronized signals a successful header sync from a peer.
	HeadersSynchronized
	// HeaderSyncFailed signals that header sync exhausted all candidates.
	HeaderSyncFailed
	// HorizonStateSynchronized signals a completed horizon state transfer.
	HorizonStateSynchronized
	// HorizonStateSyncFailure signals that horizon sync exhausted all
	// candidates.
	HorizonStateSyncFailure
	// BlocksSynchronized signals that block sync reached the network tip.
	BlocksSynchronized
	// BlockSyncFailed signals that block sync exhausted all candidates.
	BlockSyncFailed
	// FallenBehind signals that the local chain is no longer up to date.
	FallenBehind
	// NetworkSilence signals that there are no reachable sync candidates.
	NetworkSilence
	// FatalError signals an unrecoverable internal error.
	FatalError
	// Continue signals the end of a Waiting cooldown.
	Continue
	// UserQuit signals an operator-initiated shutdown.
	UserQuit
)

// String ...
func (t EventType) String() string {
	switch t {
	case Initialized:
		return "Initialized"
	case InitialSync:
		return "InitialSync"
	case HeadersSynchronized:
		return "HeadersSynchronized"
	case HeaderSyncFailed:
		return "HeaderSyncFailed"
	case HorizonStateSynchronized:
		return "HorizonStateSynchronized"
	case HorizonStateSyncFailure:
		return "HorizonStateSyncFailure"
	case BlocksSynchronized:
		return "BlocksSynchronized"
	case BlockSyncFailed:
		return "BlockSyncFailed"
	case FallenBehind:
		return "FallenBehind"
	case NetworkSilence:
		return "NetworkSilence"
	case FatalError:
		return "FatalError"
	case Continue:
		return "Continue"
	case UserQuit:
		return "UserQuit"
	default:
		return "Unknown"
	}
}

// StateEvent is produced by exactly one phase per state machine iteration. It
// carries the event type plus the payloads some events require: the peer that
// served a header sync, the SyncStatus behind a FallenBehind, and the message
// of a FatalError.
type StateEvent struct {
	Type   EventType
	Peer   *peers.Peer
	Status SyncStatus
	Err    string
}

// String ...
func (e StateEvent) String() string {
	switch e.Type {
	case HeadersSynchronized:
		if e.Peer != nil {
			return fmt.Sprintf("HeadersSynchronized(%s)", e.Peer.ShortStr())
		}
		return "HeadersSynchronized"
	case FallenBehind:
		return fmt.Sprintf("FallenBehind(%s)", e.Status)
	case FatalError:
		return fmt.Sprintf("FatalError(%s)", e.Err)
	default:
		return e.Type.String()
	}
}

// event is a convenience constructor for payload-free events.
func event(t EventType) StateEvent {
	return StateEvent{Type: t}
}

// fatal converts an unexpected internal error into a FatalError event. Every
// phase routes unclassified errors through here so the machine can never get
// stuck on one.
func fatal(err error) StateEvent {
	return StateEvent{Type: FatalError, Err: err.Error()}
}
