package net

// RPCResponse carries the reply to a sync request together with any error the
// remote node produced while serving it.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC is a single in-flight sync request. Command holds one of the request
// types (GetChainMetadataRequest, FetchHeadersRequest, ...) and RespChan is
// where the handler delivers the reply.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond delivers the reply for this request.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
