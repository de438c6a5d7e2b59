package service

import (
	"context"
	"time"

	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/log"
)

// BlockService produces a new block every block time, advancing the
// ledger height that the election windows are evaluated against.
type BlockService struct {
	chain *chain.Chain
	t     ticker
}

// NewBlockService creates a BlockService for ch.
func NewBlockService(ch *chain.Chain, blockTime time.Duration) *BlockService {
	bs := &BlockService{chain: ch}
	bs.t = ticker{interval: blockTime, tick: bs.advance}
	return bs
}

// Start begins producing blocks. It returns an error if the service is
// already running.
func (bs *BlockService) Start(ctx context.Context) error {
	if err := bs.t.start(ctx); err != nil {
		return err
	}
	log.Infow("block production started", "blockTime", bs.t.interval.String(), "height", bs.chain.Height())
	return nil
}

// Stop halts block production.
func (bs *BlockService) Stop() {
	bs.t.stop()
}

func (bs *BlockService) advance(context.Context) {
	h, err := bs.chain.AdvanceBlock()
	if err != nil {
		log.Warnw("failed to advance block", "error", err)
		return
	}
	log.Debugw("new block", "height", h)
}
