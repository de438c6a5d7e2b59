package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/api"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/types"
)

// APIError is returned by the typed helpers when the server answers with an
// error. Code is one of the api error codes.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d code %d (%s)", errCodeNot200, e.Status, e.Code, e.Message)
}

// getJSON requests urlPath and decodes the response into out.
func (c *HTTPclient) getJSON(out any, params []string, urlPath ...string) error {
	return c.doJSON(HTTPGET, nil, out, params, urlPath...)
}

func (c *HTTPclient) doJSON(method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.Request(method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &APIError{Status: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SubmitCall sends a signed call and returns its receipt.
func (c *HTTPclient) SubmitCall(sc *chain.SignedCall) (*chain.Receipt, error) {
	receipt := &chain.Receipt{}
	if err := c.doJSON(HTTPPOST, sc, receipt, nil, api.CallsEndpoint); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Send signs a call with the next nonce of the signer and submits it.
func (c *HTTPclient) Send(signer *ethereum.SignKeys, method string, payload any) (*chain.Receipt, error) {
	nonce, err := c.Nonce(signer.Address())
	if err != nil {
		return nil, err
	}
	sc, err := chain.SignCall(signer, method, nonce, payload)
	if err != nil {
		return nil, err
	}
	return c.SubmitCall(sc)
}

// Height returns the current chain height.
func (c *HTTPclient) Height() (types.BlockNumber, error) {
	info := &api.ChainInfo{}
	if err := c.getJSON(info, nil, api.ChainEndpoint); err != nil {
		return 0, err
	}
	return info.Height, nil
}

// Nonce returns the next call nonce of addr.
func (c *HTTPclient) Nonce(addr common.Address) (uint64, error) {
	n := &api.Nonce{}
	if err := c.getJSON(n, nil, "accounts", addr.Hex(), "nonce"); err != nil {
		return 0, err
	}
	return n.Nonce, nil
}

// Elections returns the ids of every election.
func (c *HTTPclient) Elections() ([]types.ElectionID, error) {
	resp := &api.Elections{}
	if err := c.getJSON(resp, nil, api.ElectionsEndpoint); err != nil {
		return nil, err
	}
	return resp.Elections, nil
}

// Election returns the election record with its ballot count.
func (c *HTTPclient) Election(id types.ElectionID) (*api.ElectionInfo, error) {
	info := &api.ElectionInfo{}
	if err := c.getJSON(info, nil, "elections", formatUint(uint64(id))); err != nil {
		return nil, err
	}
	return info, nil
}

// Ballots returns every ballot of the election.
func (c *HTTPclient) Ballots(id types.ElectionID) (*api.Ballots, error) {
	b := &api.Ballots{}
	if err := c.getJSON(b, []string{api.WithDataQueryKey, "true"}, "elections", formatUint(uint64(id)), "ballots"); err != nil {
		return nil, err
	}
	return b, nil
}

// Tally returns the result of a finalized election.
func (c *HTTPclient) Tally(id types.ElectionID) (*types.TallyResult, error) {
	r := &types.TallyResult{}
	if err := c.getJSON(r, nil, "elections", formatUint(uint64(id)), "tally"); err != nil {
		return nil, err
	}
	return r, nil
}

// Job returns a mix job.
func (c *HTTPclient) Job(id types.JobID) (*types.MixJob, error) {
	j := &types.MixJob{}
	if err := c.getJSON(j, nil, "jobs", formatUint(uint64(id))); err != nil {
		return nil, err
	}
	return j, nil
}

// Jobs lists the mix jobs, only those in status if it is not empty.
func (c *HTTPclient) Jobs(status string) ([]*types.MixJob, error) {
	var params []string
	if status != "" {
		params = []string{api.StatusQueryKey, status}
	}
	resp := &api.Jobs{}
	if err := c.getJSON(resp, params, api.JobsEndpoint); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Events returns the events recorded since sequence number from.
func (c *HTTPclient) Events(from uint64) (*api.Events, error) {
	resp := &api.Events{}
	if err := c.getJSON(resp, []string{api.FromQueryKey, formatUint(from)}, api.EventsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
