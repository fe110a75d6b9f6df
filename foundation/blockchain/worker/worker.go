// Package worker implements the background mining for the blockchain. Mining
// runs on its own goroutine so peer traffic keeps being processed, and it is
// cancelled whenever the chain changes underneath it.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// ErrShutdown is returned when a mining request can't complete because the
// worker is shutting down.
var ErrShutdown = errors.New("worker is shutting down")

// =============================================================================

// job is a request to mine a block with the specified data.
type job struct {
	ctx    context.Context
	data   string
	result chan result
}

type result struct {
	block database.Block
	err   error
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	shut         chan struct{}
	shutOnce     sync.Once
	mining       chan job
	cancelMining chan struct{}
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	w := Worker{
		state:        st,
		shut:         make(chan struct{}),
		mining:       make(chan job),
		cancelMining: make(chan struct{}, 1),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work. Any mining in progress
// is cancelled.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to abandon the current search. If a signal is already pending this call
// does nothing.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- struct{}{}:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// Mine asks the worker to mine a block with the specified data on top of the
// latest block and waits for the result. If the chain changes during the
// search, mining restarts against the new latest block.
func (w *Worker) Mine(ctx context.Context, data string) (database.Block, error) {
	j := job{
		ctx:    ctx,
		data:   data,
		result: make(chan result, 1),
	}

	select {
	case w.mining <- j:
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	case <-w.shut:
		return database.Block{}, ErrShutdown
	}

	select {
	case r := <-j.result:
		return r.block, r.err
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
