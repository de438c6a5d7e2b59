package storage

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/vocdoni/mixvote/types"
)

// Job returns the mix job. Returns ErrNotFound if it does not exist.
func (s *Storage) Job(id types.JobID) (*types.MixJob, error) {
	j := &types.MixJob{}
	if err := s.getArtifact(jobPrefix, jobKey(id), j); err != nil {
		return nil, err
	}
	return j, nil
}

// NextJobID returns the id that the next submitted job will take.
func (s *Storage) NextJobID() (types.JobID, error) {
	var id types.JobID
	if err := s.getArtifact(nextJobPrefix, singletonKey, &id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

// LastJobForElection returns the id of the most recent job submitted for the
// election. Returns ErrNotFound if none was submitted.
func (s *Storage) LastJobForElection(eid types.ElectionID) (types.JobID, error) {
	var id types.JobID
	if err := s.getArtifact(lastJobPrefix, electionKey(eid), &id); err != nil {
		return 0, err
	}
	return id, nil
}

// CountJobs returns the number of stored jobs, counted by iterating the keys.
func (s *Storage) CountJobs() (int, error) {
	count := 0
	if err := s.iterateArtifacts(jobPrefix, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, fmt.Errorf("iterate jobs: %w", err)
	}
	return count, nil
}

// Jobs returns the stored jobs accepted by filter (all of them if filter is
// nil), ordered by id.
func (s *Storage) Jobs(filter func(*types.MixJob) bool) ([]*types.MixJob, error) {
	var (
		jobs      []*types.MixJob
		decodeErr error
	)
	if err := s.iterateArtifacts(jobPrefix, func(k, v []byte) bool {
		j := &types.MixJob{}
		if err := decodeArtifact(v, j); err != nil {
			decodeErr = fmt.Errorf("decode job %x: %w", k, err)
			return false
		}
		if filter == nil || filter(j) {
			jobs = append(jobs, j)
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	// not every backend iterates in key order
	slices.SortFunc(jobs, func(a, b *types.MixJob) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs, nil
}
