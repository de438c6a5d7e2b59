package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/config"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/metrics"
	"github.com/vocdoni/mixvote/mixer"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/service"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

type runner interface {
	Start(context.Context) error
	Stop()
}

func main() {
	cfg, err := config.Load(filepath.Base(os.Args[0]), os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)

	if err := os.MkdirAll(cfg.Datadir, 0o750); err != nil {
		log.Fatalf("cannot create datadir: %v", err)
	}
	database, err := metadb.New(cfg.DBType, filepath.Join(cfg.Datadir, "ledger"))
	if err != nil {
		log.Fatalf("cannot open database: %v", err)
	}
	stg := storage.New(database)
	defer stg.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(reg)

	var ch *chain.Chain
	rec := events.NewRecorder(0, func() types.BlockNumber { return ch.Height() })
	sink := events.Multi{rec, mc, events.LogSink{}}

	manager := voting.NewManager(stg, sink, voting.Options{
		MaxCiphertextSize: cfg.Chain.MaxCiphertextSize,
		MaxResultURISize:  cfg.Chain.MaxResultURISize,
	})
	tracker := mixjob.NewTracker(stg, sink, mixjob.Options{
		MaxJobs:             cfg.Chain.MaxJobs,
		MaxErrorMessageSize: cfg.Chain.MaxJobErrorSize,
	})
	ch, err = chain.New(stg, manager, tracker, mc)
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("ledger loaded", "datadir", cfg.Datadir, "height", ch.Height())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running []runner
	start := func(name string, s runner) {
		if err := s.Start(ctx); err != nil {
			log.Fatalf("cannot start %s service: %v", name, err)
		}
		running = append(running, s)
	}

	start("api", service.NewAPI(ch, rec, mc, cfg.API.Host, cfg.API.Port))
	start("block", service.NewBlockService(ch, cfg.Chain.BlockTime))

	if cfg.Mixer.Enabled {
		signer := ethereum.NewSignKeys()
		if err := signer.AddHexKey(cfg.Mixer.PrivateKey); err != nil {
			log.Fatalf("invalid mixer private key: %v", err)
		}
		o, err := mixer.NewOrchestrator(&mixer.Config{
			Chain:               ch,
			Signer:              signer,
			Mixer:               mixer.ReverseMixer{},
			Parallel:            cfg.Mixer.Parallel,
			Metrics:             mc,
			MaxErrorMessageSize: cfg.Chain.MaxJobErrorSize,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Warnw("using the development mixer, ballots are only reversed", "account", o.Address())
		start("mixer", service.NewMixer(o, cfg.Mixer.Interval))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Infow("shutting down", "signal", s.String())

	cancel()
	for i := len(running) - 1; i >= 0; i-- {
		running[i].Stop()
	}
}
