// Package net implements different transports to communicate between basalt
// nodes.
//
// This package contains implementations of the Transport interface, which is
// used by basalt nodes to send and receive RPC requests (ChainMetadataRequest,
// HeadersRequest, BlockRequest, etc.). There are two implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// The TCP transport frames each request with a single byte indicating the
// message type, followed by the json encoded request. Connections are pooled
// per target.
//
// To use a TCP transport, set the following configuration options in the
// basalt Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that basalt binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
// If BindAddr is a local address not reachable by other peers, it is useful to
// set AdvertiseAddr to the reachable public address.
package net
