package service

import (
	"context"
	"errors"
	"time"

	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/mixer"
)

// MixerService periodically runs the mix job orchestrator over the pending
// jobs.
type MixerService struct {
	orchestrator *mixer.Orchestrator
	t            ticker
}

// NewMixer creates a MixerService that scans for pending jobs every
// interval.
func NewMixer(o *mixer.Orchestrator, interval time.Duration) *MixerService {
	ms := &MixerService{orchestrator: o}
	ms.t = ticker{interval: interval, tick: ms.run}
	return ms
}

// Start begins processing jobs. It returns an error if the service is
// already running.
func (ms *MixerService) Start(ctx context.Context) error {
	if err := ms.t.start(ctx); err != nil {
		return err
	}
	log.Infow("mixer started", "account", ms.orchestrator.Address(), "interval", ms.t.interval.String())
	return nil
}

// Stop halts the service, waiting for the jobs in progress.
func (ms *MixerService) Stop() {
	ms.t.stop()
}

func (ms *MixerService) run(ctx context.Context) {
	n, err := ms.orchestrator.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warnw("mixer run failed", "error", err)
		return
	}
	if n > 0 {
		log.Debugw("mixer run finished", "jobs", n)
	}
}
