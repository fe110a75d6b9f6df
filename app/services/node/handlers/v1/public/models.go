package public

import (
	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// MineRequest is the data used to mine a new block.
type MineRequest struct {
	Data string `json:"data" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (mr MineRequest) Validate() error {
	return validate.Check(mr)
}

// ConnectRequest identifies a peer to connect to.
type ConnectRequest struct {
	Host string `json:"host" validate:"required"`
	Port int    `json:"port" validate:"required,min=1,max=65535"`
}

// Validate checks the data in the model is considered clean.
func (cr ConnectRequest) Validate() error {
	return validate.Check(cr)
}

// Peer describes a connected peer.
type Peer struct {
	Endpoint   string `json:"endpoint"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	ListenPort int    `json:"listenPort,omitempty"`
}

func toPeers(infos []peer.Info) []Peer {
	peers := make([]Peer, len(infos))
	for i, info := range infos {
		peers[i] = Peer{
			Endpoint:   info.Endpoint(),
			Host:       info.Peer.Host,
			Port:       info.Peer.Port,
			ListenPort: info.ListenPort,
		}
	}
	return peers
}

// NodeInfo describes the node and its view of the network.
type NodeInfo struct {
	P2PHost    string `json:"p2pHost"`
	BlockCount int    `json:"blockCount"`
	PeerCount  int    `json:"peerCount"`
	Difficulty uint   `json:"difficulty"`
	HashMode   string `json:"hashMode"`
}
