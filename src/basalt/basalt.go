// Package basalt assembles the node from its parts: configuration, identity
// key, peer list, chain store, transport, sync state machine and HTTP
// service.
package basalt

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/basaltchain/basalt/src/config"
	"github.com/basaltchain/basalt/src/crypto/keys"
	"github.com/basaltchain/basalt/src/mining"
	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/node"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/service"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// Basalt is the engine tying everything together.
type Basalt struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.ChainStore
	Peers     *peers.PeerSet
	Service   *service.Service
	Monitor   *mining.ResourceMonitor
}

// NewBasalt instantiates an engine with a config object.
func NewBasalt(conf *config.Config) *Basalt {
	engine := &Basalt{
		Config:  conf,
		Monitor: mining.NewResourceMonitor(),
	}

	return engine
}

func (b *Basalt) initKey() error {
	if b.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(b.Config.Keyfile())

		privKey, err := keyfile.ReadKey()

		if err != nil {
			b.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(b.Config.Keyfile())

			if err != nil {
				b.Config.Logger().Error("Cannot generate a new private key", err)

				return err
			}

			b.Config.Logger().Info("Created a new key")
		}

		b.Config.Key = privKey
	}
	return nil
}

func (b *Basalt) initPeers() error {
	peerStore := peers.NewJSONPeerSet(b.Config.PeersFile())

	peerSet, err := peerStore.PeerSet()

	if err != nil {
		b.Config.Logger().WithError(err).Warn("Cannot load peers.json, starting with an empty peer set")
		peerSet = peers.NewPeerSet([]*peers.Peer{})
	}

	b.Peers = peerSet

	return nil
}

func (b *Basalt) initStore() error {
	if !b.Config.Store {
		b.Store = store.NewInmemStore()

		b.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		if b.Config.Bootstrap {
			// Bootstrap requires an existing database to load the chain from.
			b.Config.Logger().WithField("path", b.Config.DatabaseDir).Debug("Loading existing database")

			b.Store, err = store.LoadBadgerStore(b.Config.DatabaseDir)
		} else {
			b.Config.Logger().WithField("path", b.Config.DatabaseDir).Debug("Attempting to load or create database")

			b.Store, err = store.LoadOrCreateBadgerStore(b.Config.DatabaseDir)
		}

		if err != nil {
			return err
		}

		if b.Store.NeedBootstrap() {
			b.Config.Logger().Debug("loaded badger store from existing database")
		} else {
			b.Config.Logger().Debug("created new badger store from fresh database")
		}
	}

	return nil
}

func (b *Basalt) initTransport() error {
	transport, err := net.NewTCPTransport(
		b.Config.BindAddr,
		b.Config.AdvertiseAddr,
		b.Config.MaxPool,
		b.Config.TCPTimeout,
		b.Config.Logger(),
	)

	if err != nil {
		return err
	}

	b.Transport = transport

	return nil
}

func (b *Basalt) initNode() error {
	key := b.Config.Key

	nodePub := keys.PublicKeyHex(&key.PublicKey)

	nodeID := peers.NewPeer(nodePub, b.Transport.AdvertiseAddr(), b.Config.Moniker).ID()

	// The node does not sync from itself.
	_, others := peers.ExcludePeer(b.Peers.Peers, nodeID)

	b.Config.Logger().WithFields(logrus.Fields{
		"id":    nodeID,
		"peers": len(others),
	}).Debug("PEERS")

	peerMgr := peers.NewManager(peers.NewPeerSet(others), b.Config.Logger())

	nodeConf := node.NewConfig(
		b.Config.PruningHorizon,
		b.Config.HeaderBatch,
		b.Config.KernelBatch,
		b.Config.OutputBatch,
		b.Config.BlockFanout,
		b.Config.MaxSyncPeers,
		b.Config.FetchTimeout,
		b.Config.WaitingBackoff,
		b.Config.SilenceTimeout,
		b.Config.Logger(),
	)

	b.Node = node.NewNode(
		nodeConf,
		nodeID,
		peerMgr,
		b.Store,
		b.Transport,
		b.Monitor,
	)

	return nil
}

func (b *Basalt) initService() error {
	if !b.Config.NoService {
		b.Service = service.NewService(b.Config.ServiceAddr, b.Node, b.Config.Logger())
	}
	return nil
}

// Init initialises the engine's components in dependency order.
func (b *Basalt) Init() error {
	if err := b.initPeers(); err != nil {
		return err
	}

	if err := b.initStore(); err != nil {
		return err
	}

	if err := b.initTransport(); err != nil {
		return err
	}

	if err := b.initKey(); err != nil {
		return err
	}

	if err := b.initNode(); err != nil {
		return err
	}

	if err := b.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service and the node. It blocks until the state machine
// reaches Shutdown.
func (b *Basalt) Run() {
	if b.Service != nil {
		go b.Service.Serve()
	}

	b.Node.Run()
}

// Keygen generates a new key and stores it in the given keyfile.
func Keygen(keyfilePath string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(keyfilePath)

	_, err := keyfile.ReadKey()

	if err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfilePath)
	}

	privKey, err := keys.GenerateECDSAKey()

	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
