package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// miningOperations handles mining requests one at a time.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case j := <-w.mining:
			block, err := w.runMiningOperation(j)
			j.result <- result{block: block, err: err}

		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines a block for the job and proposes it to the
// network. Each cancel signal abandons the current search and starts over
// against the new latest block.
func (w *Worker) runMiningOperation(j job) (database.Block, error) {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	for attempt := 1; ; attempt++ {
		block, err := w.mineOnce(j)

		switch {
		case err == nil:

			// WOW, we mined a block. Propose the new block to the network.
			// Log the error, but that's it.
			if err := w.state.NetBroadcastLatestBlock(); err != nil {
				w.evHandler("worker: runMiningOperation: MINING: broadcast: WARNING %s", err)
			}
			return block, nil

		case j.ctx.Err() != nil:
			w.evHandler("worker: runMiningOperation: MINING: request cancelled")
			return database.Block{}, j.ctx.Err()

		case w.isShutdown():
			return database.Block{}, ErrShutdown

		case database.IsValidationError(err), errors.Is(err, context.Canceled):

			// The latest block changed under us, either a peer block was
			// accepted mid search or just before the append.
			w.evHandler("worker: runMiningOperation: MINING: restart: attempt[%d]: %s", attempt+1, err)
			continue

		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			return database.Block{}, err
		}
	}
}

// mineOnce runs a single cancellable search against the latest block.
func (w *Worker) mineOnce(j job) (database.Block, error) {

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()

	// Can't return from this function until this G is complete.
	var wg sync.WaitGroup
	wg.Add(1)

	// This G exists to cancel the mining operation.
	go func() {
		defer wg.Done()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	t := time.Now()
	block, err := w.state.MineNewBlock(ctx, j.data)
	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(t))

	cancel()
	wg.Wait()

	return block, err
}
