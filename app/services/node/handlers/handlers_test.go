package handlers_test

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/framing"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fixture struct {
	mux   http.Handler
	state *state.State
}

func newFixture(t *testing.T) fixture {
	rules, err := database.NewRules(1, database.HashPrefixed)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the rules: %v", failed, err)
	}

	st, err := state.New(state.Config{Rules: rules, Host: "127.0.0.1:6001"})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	w := worker.Run(st, nil)
	t.Cleanup(w.Shutdown)

	node, err := p2p.New(p2p.Config{State: st, Host: "127.0.0.1:0", Framing: framing.ModeLength})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the p2p node: %v", failed, err)
	}
	t.Cleanup(node.Shutdown)

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    make(chan os.Signal, 1),
		Log:         zap.NewNop().Sugar(),
		State:       st,
		Miner:       w,
		Net:         node,
		Evts:        events.New(),
		CORSOrigins: []string{"*"},
	})

	return fixture{mux: mux, state: st}
}

func (f fixture) do(method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

// =============================================================================

func Test_Blocks(t *testing.T) {
	t.Log("Given the need to mine and read blocks through the api.")
	{
		f := newFixture(t)

		w := f.do(http.MethodPost, "/v1/blocks/mine", `{"data":"hello"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("\t%s\tShould be able to mine a block: %d %s", failed, w.Code, w.Body)
		}

		var block database.Block
		if err := json.Unmarshal(w.Body.Bytes(), &block); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the mined block: %v", failed, err)
		}
		if block.Index != 1 || block.Data != "hello" {
			t.Fatalf("\t%s\tShould get the mined block back: %+v", failed, block)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		w = f.do(http.MethodGet, "/v1/blocks", "")
		var chain []database.Block
		if err := json.Unmarshal(w.Body.Bytes(), &chain); err != nil || w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould be able to read the chain: %d %v", failed, w.Code, err)
		}
		if len(chain) != 2 || chain[1] != block {
			t.Fatalf("\t%s\tShould list the mined block in the chain: %+v", failed, chain)
		}
		t.Logf("\t%s\tShould list the mined block in the chain.", success)

		w = f.do(http.MethodGet, "/v1/blocks/latest", "")
		var latest database.Block
		if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil || latest != block {
			t.Fatalf("\t%s\tShould get the mined block as the latest: %+v %v", failed, latest, err)
		}
		t.Logf("\t%s\tShould get the mined block as the latest.", success)

		w = f.do(http.MethodGet, "/v1/nodeinfo", "")
		var info struct {
			BlockCount int  `json:"blockCount"`
			PeerCount  int  `json:"peerCount"`
			Difficulty uint `json:"difficulty"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the node info: %v", failed, err)
		}
		if info.BlockCount != 2 || info.PeerCount != 0 || info.Difficulty != 1 {
			t.Fatalf("\t%s\tShould report the node info: %+v", failed, info)
		}
		t.Logf("\t%s\tShould report the node info.", success)
	}
}

func Test_BadRequests(t *testing.T) {
	type table struct {
		name   string
		method string
		path   string
		body   string
		status int
		field  string
	}

	// Grab a free port nobody listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to find a free port: %v", failed, err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	tt := []table{
		{name: "mine-missing-data", method: http.MethodPost, path: "/v1/blocks/mine", body: `{}`, status: http.StatusBadRequest, field: "data"},
		{name: "mine-unknown-field", method: http.MethodPost, path: "/v1/blocks/mine", body: `{"payload":"x"}`, status: http.StatusBadRequest},
		{name: "mine-bad-json", method: http.MethodPost, path: "/v1/blocks/mine", body: `{`, status: http.StatusBadRequest},
		{name: "connect-bad-port", method: http.MethodPost, path: "/v1/peers", body: `{"host":"127.0.0.1","port":0}`, status: http.StatusBadRequest, field: "port"},
		{name: "connect-refused", method: http.MethodPost, path: "/v1/peers", body: `{"host":"127.0.0.1","port":` + strconv.Itoa(port) + `}`, status: http.StatusBadGateway},
	}

	t.Log("Given the need to reject bad requests.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s request.", testID, tst.name)
				{
					fx := newFixture(t)

					w := fx.do(tst.method, tst.path, tst.body)
					if w.Code != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould get status %d: %d %s", failed, testID, tst.status, w.Code, w.Body)
					}
					t.Logf("\t%s\tTest %d:\tShould get status %d.", success, testID, tst.status)

					var resp errs.Response
					if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
						t.Fatalf("\t%s\tTest %d:\tShould get an error response: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get an error response.", success, testID)

					if tst.field != "" && resp.Fields[tst.field] == "" {
						t.Fatalf("\t%s\tTest %d:\tShould report the %q field: %+v", failed, testID, tst.field, resp)
					}

					if fx.state.RetrieveChainLength() != 1 || fx.state.RetrievePeerCount() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould leave the node unchanged.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould leave the node unchanged.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Cors(t *testing.T) {
	t.Log("Given the need to accept cross origin requests.")
	{
		f := newFixture(t)

		r := httptest.NewRequest(http.MethodOptions, "/v1/blocks/mine", nil)
		r.Header.Set("Origin", "http://example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)

		w := httptest.NewRecorder()
		f.mux.ServeHTTP(w, r)

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("\t%s\tShould answer the preflight request: %v", failed, w.Header())
		}
		t.Logf("\t%s\tShould answer the preflight request.", success)
	}
}
