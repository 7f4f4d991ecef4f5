package node

// State captures the state of a basalt node: Starting, HeaderSync,
// HorizonStateSync, BlockSync, Listening, Waiting, or Shutdown.
type State uint32

const (
	//Starting is the initial state, before the first sync round.
	Starting State = iota
	//HeaderSync is downloading block headers from sync peers.
	HeaderSync
	//HorizonStateSync is downloading the pruned horizon state.
	HorizonStateSync
	//BlockSync is downloading full blocks up to the network tip.
	BlockSync
	//Listening is the steady state, reacting to tip announcements.
	Listening
	//Waiting is a cooldown after a sync failure or network silence.
	Waiting
	//Shutdown is the terminal state.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case HeaderSync:
		return "HeaderSync"
	case HorizonStateSync:
		return "HorizonStateSync"
	case BlockSync:
		return "BlockSync"
	case Listening:
		return "Listening"
	case Waiting:
		return "Waiting"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
