// Package voting implements the election lifecycle: creation, voter
// registration, ballot casting, mix commitments and tally submission.
//
// Every operation checks, in order, that the election exists, that the
// caller holds the required role, that the election is not finalized, that
// the phase deadline has not passed and finally the operation specific
// conditions. All its writes are committed in a single batch, after which
// exactly one event is emitted. WithBatch lets a caller stage an operation
// into a batch that carries other writes.
package voting

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
)

const (
	// DefaultMaxCiphertextSize is the default bound for a ballot ciphertext.
	DefaultMaxCiphertextSize = 64 * 1024
	// DefaultMaxResultURISize is the default bound for the tally result URI.
	DefaultMaxResultURISize = 256
)

// Options bound the size of the user supplied payloads. Zero values take
// the defaults.
type Options struct {
	MaxCiphertextSize int
	MaxResultURISize  int
}

// Manager owns the election records and drives their lifecycle.
type Manager struct {
	stg              *storage.Storage
	voters           *VoterRegistry
	ballots          *BallotStore
	sink             events.Sink
	maxResultURISize int
}

// NewManager creates a Manager over stg. Events are delivered to sink, which
// may be nil.
func NewManager(stg *storage.Storage, sink events.Sink, opts Options) *Manager {
	if opts.MaxCiphertextSize <= 0 {
		opts.MaxCiphertextSize = DefaultMaxCiphertextSize
	}
	if opts.MaxResultURISize <= 0 {
		opts.MaxResultURISize = DefaultMaxResultURISize
	}
	return &Manager{
		stg:              stg,
		voters:           NewVoterRegistry(stg),
		ballots:          NewBallotStore(stg, opts.MaxCiphertextSize),
		sink:             sink,
		maxResultURISize: opts.MaxResultURISize,
	}
}

// Voters returns the voter registry.
func (m *Manager) Voters() *VoterRegistry {
	return m.voters
}

// Ballots returns the ballot store.
func (m *Manager) Ballots() *BallotStore {
	return m.ballots
}

// Election returns the election record, types.ErrNotFound if unknown.
func (m *Manager) Election(id types.ElectionID) (*types.Election, error) {
	e, err := wrapNotFound(m.stg.Election(id))
	if err != nil {
		return nil, fmt.Errorf("election %d: %w", id, err)
	}
	return e, nil
}

// Elections returns the ids of every stored election in ascending order.
func (m *Manager) Elections() ([]types.ElectionID, error) {
	ids, err := m.stg.ListElections()
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	return ids, nil
}

// TallyResult returns the tally of a finalized election.
func (m *Manager) TallyResult(id types.ElectionID) (*types.TallyResult, error) {
	r, err := wrapNotFound(m.stg.TallyResult(id))
	if err != nil {
		return nil, fmt.Errorf("tally of election %d: %w", id, err)
	}
	return r, nil
}

// CreateElection stores a new election administered by the caller. The
// registration deadline must be in the future and before the voting
// deadline.
func (m *Manager) CreateElection(origin types.Origin, id types.ElectionID, tallyAuthority common.Address,
	registrationDeadline, votingDeadline types.BlockNumber,
) error {
	return m.commit(fmt.Sprintf("election %d", id), func(tx *Tx) error {
		return tx.CreateElection(origin, id, tallyAuthority, registrationDeadline, votingDeadline)
	})
}

// RegisterVoter allows voter to cast ballots in the election. Only the
// election admin can register voters, until the registration deadline.
func (m *Manager) RegisterVoter(origin types.Origin, id types.ElectionID, voter common.Address) error {
	return m.commit("voter registration", func(tx *Tx) error {
		return tx.RegisterVoter(origin, id, voter)
	})
}

// CastVote appends the ciphertext of a registered voter to the election and
// returns its index. A voter may cast several ballots.
func (m *Manager) CastVote(origin types.Origin, id types.ElectionID, ciphertext []byte) (types.BallotIndex, error) {
	var index types.BallotIndex
	err := m.commit("ballot", func(tx *Tx) (err error) {
		index, err = tx.CastVote(origin, id, ciphertext)
		return err
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// SetMixCommitments records the input and output roots of a mix run. Only the
// tally authority can set them, any number of times before the election is
// finalized. Both roots are always replaced together.
func (m *Manager) SetMixCommitments(origin types.Origin, id types.ElectionID, inputRoot, outputRoot common.Hash) error {
	return m.commit("mix commitments", func(tx *Tx) error {
		return tx.SetMixCommitments(origin, id, inputRoot, outputRoot)
	})
}

// SubmitTally stores the result of the election and finalizes it. The mix
// commitments must have been set before.
func (m *Manager) SubmitTally(origin types.Origin, id types.ElectionID, resultURI string, resultHash common.Hash) error {
	return m.commit("tally", func(tx *Tx) error {
		return tx.SubmitTally(origin, id, resultURI, resultHash)
	})
}

// WithBatch binds the manager operations to b. Their writes are staged into
// b and their event is emitted once the caller commits it.
func (m *Manager) WithBatch(b *storage.Batch) *Tx {
	return &Tx{m: m, b: b}
}

// commit runs stage on a fresh batch and commits it.
func (m *Manager) commit(what string, stage func(tx *Tx) error) error {
	b := m.stg.NewBatch()
	defer b.Discard()
	if err := stage(m.WithBatch(b)); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}

// Tx is a Manager bound to a caller owned batch.
type Tx struct {
	m *Manager
	b *storage.Batch
}

// CreateElection stages a new election, see Manager.CreateElection.
func (tx *Tx) CreateElection(origin types.Origin, id types.ElectionID, tallyAuthority common.Address,
	registrationDeadline, votingDeadline types.BlockNumber,
) error {
	exists, err := tx.m.stg.ElectionExists(id)
	if err != nil {
		return fmt.Errorf("read election %d: %w", id, err)
	}
	if exists {
		return fmt.Errorf("%w: election %d", types.ErrAlreadyExists, id)
	}
	if registrationDeadline >= votingDeadline || registrationDeadline <= origin.Block {
		return fmt.Errorf("%w: registration %d, voting %d, now %d", types.ErrInvalidWindow,
			registrationDeadline, votingDeadline, origin.Block)
	}

	election := &types.Election{
		ID:                   id,
		Admin:                origin.Caller,
		TallyAuthority:       tallyAuthority,
		RegistrationDeadline: registrationDeadline,
		VotingDeadline:       votingDeadline,
	}
	if err := tx.b.SetElection(election); err != nil {
		return err
	}
	if err := tx.b.SetBallotCount(id, 0); err != nil {
		return err
	}
	tx.b.OnCommit(func() {
		log.Infow("election created",
			"electionId", id,
			"admin", origin.Caller.Hex(),
			"tallyAuthority", tallyAuthority.Hex(),
			"registrationDeadline", registrationDeadline,
			"votingDeadline", votingDeadline)
		tx.m.emit(types.ElectionCreated{ElectionID: id})
	})
	return nil
}

// RegisterVoter stages a voter registration, see Manager.RegisterVoter.
func (tx *Tx) RegisterVoter(origin types.Origin, id types.ElectionID, voter common.Address) error {
	election, err := tx.m.Election(id)
	if err != nil {
		return err
	}
	if origin.Caller != election.Admin {
		return fmt.Errorf("%w: %s is not the admin of election %d", types.ErrUnauthorized, origin.Caller, id)
	}
	if !election.RegistrationOpen(origin.Block) {
		return fmt.Errorf("%w: registration of election %d", types.ErrClosed, id)
	}

	if err := tx.m.voters.Register(tx.b, id, voter); err != nil {
		return err
	}
	tx.b.OnCommit(func() {
		log.Debugw("voter registered", "electionId", id, "voter", voter.Hex())
		tx.m.emit(types.VoterRegistered{ElectionID: id, Voter: voter})
	})
	return nil
}

// CastVote stages a ballot, see Manager.CastVote.
func (tx *Tx) CastVote(origin types.Origin, id types.ElectionID, ciphertext []byte) (types.BallotIndex, error) {
	election, err := tx.m.Election(id)
	if err != nil {
		return 0, err
	}
	if !election.VotingOpen(origin.Block) {
		return 0, fmt.Errorf("%w: voting of election %d", types.ErrClosed, id)
	}
	registered, err := tx.m.voters.IsRegistered(id, origin.Caller)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, fmt.Errorf("%w: %s in election %d", types.ErrNotRegistered, origin.Caller, id)
	}

	index, err := tx.m.ballots.Append(tx.b, id, ciphertext)
	if err != nil {
		return 0, err
	}
	tx.b.OnCommit(func() {
		log.Debugw("ballot cast", "electionId", id, "voter", origin.Caller.Hex(), "index", index, "size", len(ciphertext))
		tx.m.emit(types.BallotCast{ElectionID: id, Voter: origin.Caller, Index: index})
	})
	return index, nil
}

// SetMixCommitments stages the mix roots, see Manager.SetMixCommitments.
func (tx *Tx) SetMixCommitments(origin types.Origin, id types.ElectionID, inputRoot, outputRoot common.Hash) error {
	election, err := tx.m.Election(id)
	if err != nil {
		return err
	}
	if origin.Caller != election.TallyAuthority {
		return fmt.Errorf("%w: %s is not the tally authority of election %d", types.ErrUnauthorized, origin.Caller, id)
	}
	if election.Finalized {
		return fmt.Errorf("%w: election %d is finalized", types.ErrClosed, id)
	}

	election.CommitmentInputRoot = &inputRoot
	election.CommitmentOutputRoot = &outputRoot
	if err := tx.b.SetElection(election); err != nil {
		return err
	}
	tx.b.OnCommit(func() {
		log.Infow("mix commitments set",
			"electionId", id,
			"inputRoot", inputRoot.Hex(),
			"outputRoot", outputRoot.Hex())
		tx.m.emit(types.MixCommitmentsSet{ElectionID: id})
	})
	return nil
}

// SubmitTally stages the tally, see Manager.SubmitTally.
func (tx *Tx) SubmitTally(origin types.Origin, id types.ElectionID, resultURI string, resultHash common.Hash) error {
	election, err := tx.m.Election(id)
	if err != nil {
		return err
	}
	if origin.Caller != election.TallyAuthority {
		return fmt.Errorf("%w: %s is not the tally authority of election %d", types.ErrUnauthorized, origin.Caller, id)
	}
	if election.Finalized {
		return fmt.Errorf("%w: election %d is finalized", types.ErrClosed, id)
	}
	if !election.HasCommitments() {
		return fmt.Errorf("%w: election %d", types.ErrCommitmentsMissing, id)
	}
	if len(resultURI) > tx.m.maxResultURISize {
		return fmt.Errorf("%w: result uri of %d bytes, max %d", types.ErrTooLarge, len(resultURI), tx.m.maxResultURISize)
	}

	election.Finalized = true
	if err := tx.b.SetTallyResult(id, &types.TallyResult{ResultURI: resultURI, ResultHash: resultHash}); err != nil {
		return err
	}
	if err := tx.b.SetElection(election); err != nil {
		return err
	}
	tx.b.OnCommit(func() {
		log.Infow("tally submitted", "electionId", id, "resultUri", resultURI, "resultHash", resultHash.Hex())
		tx.m.emit(types.TallySubmitted{ElectionID: id})
	})
	return nil
}

func (m *Manager) emit(ev types.Event) {
	if m.sink != nil {
		m.sink.Emit(ev)
	}
}
