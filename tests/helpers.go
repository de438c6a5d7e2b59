// Package tests runs a complete mixvote node in process and drives it
// through the HTTP API client.
package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vocdoni/mixvote/api/client"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/metrics"
	"github.com/vocdoni/mixvote/mixer"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/service"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

// Node is an in-process mixvote node. Blocks are not produced on a timer,
// tests move the height explicitly.
type Node struct {
	Chain    *chain.Chain
	Events   *events.Recorder
	Metrics  *metrics.Collector
	API      *service.APIService
	Mixer    *service.MixerService
	Worker   *ethereum.SignKeys
	Endpoint string
}

// NewTestNode starts the API and the mixer services over a fresh pebble
// database. The worker account signs the orchestrator calls and must be
// used as tally authority.
func NewTestNode(t testing.TB, mixInterval time.Duration) *Node {
	stg := storage.New(metadb.NewTest(t))
	mc := metrics.NewCollector(prometheus.NewRegistry())

	n := &Node{Metrics: mc}
	n.Events = events.NewRecorder(0, func() types.BlockNumber { return n.Chain.Height() })
	sink := events.Multi{n.Events, mc, events.LogSink{}}

	var err error
	n.Chain, err = chain.New(stg,
		voting.NewManager(stg, sink, voting.Options{}),
		mixjob.NewTracker(stg, sink, mixjob.Options{}),
		mc)
	qt.Assert(t, err, qt.IsNil)

	n.Worker, err = NewTestSigner()
	qt.Assert(t, err, qt.IsNil)
	o, err := mixer.NewOrchestrator(&mixer.Config{
		Chain:   n.Chain,
		Signer:  n.Worker,
		Mixer:   mixer.ReverseMixer{},
		Metrics: mc,
	})
	qt.Assert(t, err, qt.IsNil)

	ctx := context.Background()
	n.API = service.NewAPI(n.Chain, n.Events, mc, "127.0.0.1", 0)
	qt.Assert(t, n.API.Start(ctx), qt.IsNil)
	t.Cleanup(n.API.Stop)
	n.Endpoint = fmt.Sprintf("http://%s", n.API.Addr())

	n.Mixer = service.NewMixer(o, mixInterval)
	qt.Assert(t, n.Mixer.Start(ctx), qt.IsNil)
	t.Cleanup(n.Mixer.Stop)
	return n
}

// NewTestSigner creates and initializes a new ethereum signer for testing.
func NewTestSigner() (*ethereum.SignKeys, error) {
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, err
	}
	return signer, nil
}

// NewTestClient creates a new API client for the node.
func (n *Node) NewTestClient() (*client.HTTPclient, error) {
	return client.New(n.Endpoint)
}
