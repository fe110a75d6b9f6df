// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Miner mines new blocks on top of the local chain.
type Miner interface {
	Mine(ctx context.Context, data string) (database.Block, error)
}

// Network manages the connections to other nodes.
type Network interface {
	ConnectToPeer(ctx context.Context, host string, port int) error
}

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Miner Miner
	Net   Network
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	h.Log.Infow("events", "traceid", web.GetTraceID(ctx), "subscriber", id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Blocks returns the whole chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveChain(), http.StatusOK)
}

// LatestBlock returns the last block in the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveLatestBlock(), http.StatusOK)
}

// Mine mines a new block with the data provided and proposes it to the
// connected peers.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req MineRequest
	if err := web.Decode(r, &req); err != nil {
		return decodeError(err)
	}

	h.Log.Infow("mine", "traceid", web.GetTraceID(ctx), "data", req.Data)

	block, err := h.Miner.Mine(ctx, req.Data)
	if err != nil {
		return errs.NewLedger(err)
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// Peers returns the set of connected peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toPeers(h.State.RetrieveKnownPeers()), http.StatusOK)
}

// Connect opens a connection to the specified peer.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req ConnectRequest
	if err := web.Decode(r, &req); err != nil {
		return decodeError(err)
	}

	h.Log.Infow("connect", "traceid", web.GetTraceID(ctx), "host", req.Host, "port", req.Port)

	if err := h.Net.ConnectToPeer(ctx, req.Host, req.Port); err != nil {
		if errors.Is(err, p2p.ErrDuplicatePeer) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusBadGateway)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: fmt.Sprintf("connected to %s:%d", req.Host, req.Port),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// NodeInfo returns information about the node.
func (h Handlers) NodeInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	rules := h.State.RetrieveRules()

	info := NodeInfo{
		P2PHost:    h.State.RetrieveHost(),
		BlockCount: h.State.RetrieveChainLength(),
		PeerCount:  h.State.RetrievePeerCount(),
		Difficulty: rules.Difficulty,
		HashMode:   string(rules.HashMode),
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// decodeError reports field errors per field and anything else as a bad
// request.
func decodeError(err error) error {
	if validate.IsFieldErrors(err) {
		return err
	}
	return errs.NewTrusted(err, http.StatusBadRequest)
}
