// Package chain is the single-node execution environment of the ledger. It
// authenticates signed calls, enforces account nonces, keeps the block height
// and runs one operation at a time against the voting manager and the mix
// job tracker.
package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/metrics"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/voting"
)

var (
	// ErrInvalidSignature is returned when the call signer cannot be recovered.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrBadNonce is returned when the call nonce is not the expected one.
	ErrBadNonce = errors.New("bad nonce")
	// ErrUnknownMethod is returned for calls to an unknown method.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrMalformedPayload is returned when the call payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrHeightRegression is returned when setting a height lower than the
	// current one.
	ErrHeightRegression = errors.New("height regression")
)

// Chain serializes the execution of the ledger operations.
type Chain struct {
	mu      sync.Mutex
	stg     *storage.Storage
	voting  *voting.Manager
	jobs    *mixjob.Tracker
	metrics *metrics.Collector

	heightMu sync.RWMutex
	height   types.BlockNumber
}

// New creates a Chain resuming from the height persisted in stg. The
// metrics collector may be nil.
func New(stg *storage.Storage, manager *voting.Manager, tracker *mixjob.Tracker, mc *metrics.Collector) (*Chain, error) {
	height, err := stg.Height()
	if err != nil {
		return nil, fmt.Errorf("read chain height: %w", err)
	}
	mc.BlockHeight(height)
	return &Chain{
		stg:     stg,
		voting:  manager,
		jobs:    tracker,
		metrics: mc,
		height:  height,
	}, nil
}

// Voting returns the election manager, for read-only queries.
func (c *Chain) Voting() *voting.Manager {
	return c.voting
}

// Jobs returns the mix job tracker, for read-only queries.
func (c *Chain) Jobs() *mixjob.Tracker {
	return c.jobs
}

// Height returns the current block height.
func (c *Chain) Height() types.BlockNumber {
	c.heightMu.RLock()
	defer c.heightMu.RUnlock()
	return c.height
}

// AdvanceBlock increments the height by one and returns the new value.
func (c *Chain) AdvanceBlock() (types.BlockNumber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.Height() + 1
	if err := c.storeHeight(next); err != nil {
		return 0, err
	}
	return next, nil
}

// SetHeight moves the chain to height, which cannot be lower than the
// current one.
func (c *Chain) SetHeight(height types.BlockNumber) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current := c.Height(); height < current {
		return fmt.Errorf("%w: %d < %d", ErrHeightRegression, height, current)
	}
	return c.storeHeight(height)
}

func (c *Chain) storeHeight(height types.BlockNumber) error {
	b := c.stg.NewBatch()
	defer b.Discard()
	if err := b.SetHeight(height); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit height: %w", err)
	}
	c.heightMu.Lock()
	c.height = height
	c.heightMu.Unlock()
	c.metrics.BlockHeight(height)
	return nil
}

// Nonce returns the next nonce expected from addr.
func (c *Chain) Nonce(addr common.Address) (uint64, error) {
	return c.stg.Nonce(addr)
}

// Dispatch authenticates the signed call and executes it.
func (c *Chain) Dispatch(sc *SignedCall) (*Receipt, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil call", ErrMalformedPayload)
	}
	caller, err := sc.Signer()
	if err != nil {
		c.metrics.CallDispatched(sc.Method, err)
		return nil, err
	}
	return c.Execute(caller, &sc.Call)
}

// Execute runs call on behalf of caller, who is assumed authenticated. The
// nonce is consumed once the method and payload are valid, even if the
// operation itself fails. A successful operation commits its writes and the
// nonce increment in one batch; a failed one commits only the nonce.
func (c *Chain) Execute(caller common.Address, call *Call) (*Receipt, error) {
	receipt, err := c.execute(caller, call)
	c.metrics.CallDispatched(call.Method, err)
	if err != nil {
		log.Debugw("call failed",
			"method", call.Method,
			"caller", caller.Hex(),
			"nonce", call.Nonce,
			"error", err.Error())
		return nil, err
	}
	return receipt, nil
}

func (c *Chain) execute(caller common.Address, call *Call) (*Receipt, error) {
	op, err := decodeOperation(call)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.stg.Nonce(caller)
	if err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	if call.Nonce != nonce {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrBadNonce, call.Nonce, nonce)
	}

	receipt := &Receipt{
		Method: call.Method,
		Caller: caller,
		Nonce:  call.Nonce,
		Block:  c.Height(),
	}
	origin := types.Origin{Caller: caller, Block: receipt.Block}
	b := c.stg.NewBatch()
	defer b.Discard()
	if err := b.SetNonce(caller, nonce+1); err != nil {
		return nil, err
	}
	if opErr := op(c, b, origin, receipt); opErr != nil {
		if err := c.consumeNonce(caller, nonce); err != nil {
			return nil, err
		}
		return nil, opErr
	}
	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", call.Method, err)
	}
	return receipt, nil
}

// consumeNonce commits the nonce increment of a call whose operation failed.
func (c *Chain) consumeNonce(caller common.Address, nonce uint64) error {
	b := c.stg.NewBatch()
	defer b.Discard()
	if err := b.SetNonce(caller, nonce+1); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit nonce: %w", err)
	}
	return nil
}

// operation stages a decoded call into b and fills the receipt.
type operation func(c *Chain, b *storage.Batch, origin types.Origin, r *Receipt) error

func decodeOperation(call *Call) (operation, error) {
	switch call.Method {
	case MethodCreateElection:
		var p CreateElectionPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, _ *Receipt) error {
			return c.voting.WithBatch(b).CreateElection(o, p.ElectionID, p.TallyAuthority, p.RegistrationDeadline, p.VotingDeadline)
		}, nil
	case MethodRegisterVoter:
		var p RegisterVoterPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, _ *Receipt) error {
			return c.voting.WithBatch(b).RegisterVoter(o, p.ElectionID, p.Voter)
		}, nil
	case MethodCastVote:
		var p CastVotePayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, r *Receipt) error {
			index, err := c.voting.WithBatch(b).CastVote(o, p.ElectionID, p.Ciphertext)
			if err != nil {
				return err
			}
			r.BallotIndex = &index
			return nil
		}, nil
	case MethodSetMixCommitments:
		var p SetMixCommitmentsPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, _ *Receipt) error {
			return c.voting.WithBatch(b).SetMixCommitments(o, p.ElectionID, p.InputRoot, p.OutputRoot)
		}, nil
	case MethodSubmitTally:
		var p SubmitTallyPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, _ *Receipt) error {
			return c.voting.WithBatch(b).SubmitTally(o, p.ElectionID, p.ResultURI, p.ResultHash)
		}, nil
	case MethodSubmitJob:
		var p SubmitJobPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, r *Receipt) error {
			var (
				id  types.JobID
				err error
			)
			if p.SourceChain != nil {
				id, err = c.jobs.WithBatch(b).SubmitJobFrom(o, p.ElectionID, *p.SourceChain)
			} else {
				id, err = c.jobs.WithBatch(b).SubmitJob(o, p.ElectionID)
			}
			if err != nil {
				return err
			}
			r.JobID = &id
			return nil
		}, nil
	case MethodUpdateJobStatus:
		var p UpdateJobStatusPayload
		if err := decodePayload(call, &p); err != nil {
			return nil, err
		}
		return func(c *Chain, b *storage.Batch, o types.Origin, r *Receipt) error {
			if err := c.jobs.WithBatch(b).UpdateJobStatus(o, p.JobID, p.Status, p.ErrorMessage); err != nil {
				return err
			}
			r.JobID = &p.JobID
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, call.Method)
	}
}

func decodePayload(call *Call, out any) error {
	dec := json.NewDecoder(bytes.NewReader(call.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, call.Method, err)
	}
	return nil
}
