package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/basaltchain/basalt/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes the node's read-only status surface over HTTP, plus a
// one-shot quit endpoint for operator-initiated shutdown.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when basalt is used
// in-memory and expecpted to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering basalt API handlers")
	http.HandleFunc("/status", s.makeHandler(s.GetStatus))
	http.HandleFunc("/chainmeta", s.makeHandler(s.GetChainMetadata))
	http.HandleFunc("/block/", s.makeHandler(s.GetBlock))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.HandleFunc("/quit", s.makeHandler(s.Quit))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when basalt is used in-memory and another server has already been
// started with the DefaultServerMux and the same address:port combination.
// Indeed, basalt API handlers have already been registered when the service
// was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving basalt API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStatus returns the current status snapshot of the sync state machine.
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := s.node.GetStatus()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(statusView{
		Bootstrapped: status.Bootstrapped,
		State:        status.State.String(),
		Info:         status.StateInfo.ShortDesc(),
		VMCount:      status.Mining.VMCount,
		VMFlags:      status.Mining.VMFlags,
	})
}

// GetChainMetadata returns the local chain position.
func (s *Service) GetChainMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.node.LocalMetadata()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving chain metadata")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(md)
}

// GetBlock returns the block at the height given in the path.
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/block/"):]

	height, err := strconv.ParseUint(param, 10, 64)

	if err != nil {
		s.logger.WithError(err).Errorf("Parsing height parameter %s", param)

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	block, err := s.node.BlockAt(height)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving block %d", height)

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// GetPeers returns the known peer set with each peer's last announced chain
// position.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	peerViews := []peerView{}
	for _, p := range s.node.PeerManager().KnownPeers() {
		view := peerView{
			ID:      p.ID(),
			NetAddr: p.NetAddr,
			Moniker: p.Moniker,
		}
		if md, ok := p.ChainMetadata(); ok {
			view.Height = md.Height
			view.Difficulty = uint64(md.AccumulatedDifficulty)
			view.LastSeen = p.LastSeen().Unix()
		}
		peerViews = append(peerViews, view)
	}

	json.NewEncoder(w).Encode(peerViews)
}

// Quit injects a UserQuit event into the state machine.
func (s *Service) Quit(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Quit requested over API")

	s.node.Inject(node.StateEvent{Type: node.UserQuit})

	w.WriteHeader(http.StatusOK)
}

type statusView struct {
	Bootstrapped bool   `json:"bootstrapped"`
	State        string `json:"state"`
	Info         string `json:"info"`
	VMCount      uint32 `json:"vm_count"`
	VMFlags      uint64 `json:"vm_flags"`
}

type peerView struct {
	ID         uint32 `json:"id"`
	NetAddr    string `json:"net_addr"`
	Moniker    string `json:"moniker"`
	Height     uint64 `json:"height"`
	Difficulty uint64 `json:"difficulty"`
	LastSeen   int64  `json:"last_seen"`
}
