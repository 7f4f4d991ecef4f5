package net

// Transport provides an interface for network transports to allow a node to
// exchange chain data with other nodes.
type Transport interface {

	// Listen starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// GetChainMetadata, FetchHeaders, FetchKernels, FetchOutputs, FetchBlock
	// and Announce send the appropriate RPC to the target node.

	GetChainMetadata(target string, args *ChainMetadataRequest, resp *ChainMetadataResponse) error

	FetchHeaders(target string, args *HeadersRequest, resp *HeadersResponse) error

	FetchKernels(target string, args *KernelsRequest, resp *KernelsResponse) error

	FetchOutputs(target string, args *OutputsRequest, resp *OutputsResponse) error

	FetchBlock(target string, args *BlockRequest, resp *BlockResponse) error

	Announce(target string, args *AnnounceRequest, resp *AnnounceResponse) error

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}
