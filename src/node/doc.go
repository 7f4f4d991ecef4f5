// Package node implements the synchronization core of a basalt node.
//
// The StateMachine decides, continuously and autonomously, whether the local
// chain is caught up with the network, and if not, drives the node through
// header synchronization, pruned-horizon state synchronization, and full
// block synchronization against a dynamically chosen set of peers.
//
// The machine holds one State at a time. Each iteration runs the phase for
// the current state, waits for its single terminal StateEvent, applies a
// deterministic transition table, and publishes a StatusInfo snapshot to a
// last-value-wins StatusWatch. Listening is the steady state; failed sync
// rounds detour through Waiting and its backoff. FatalError and UserQuit
// transition to Shutdown from any state.
//
// The Node type couples the machine with the serving side of the protocol,
// answering chain data requests from other nodes out of the local store.
package node
