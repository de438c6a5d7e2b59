package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/mixvote/api"
	"github.com/vocdoni/mixvote/types"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *HTTPclient {
	mux := http.NewServeMux()
	mux.HandleFunc(api.PingEndpoint, func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	cli, err := New(srv.URL)
	qt.Assert(t, err, qt.IsNil)
	return cli
}

func TestRequest(t *testing.T) {
	c := qt.New(t)
	var got *http.Request
	cli := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"jobs":[{"id":3,"status":"running"}]}`))
	})

	jobs, err := cli.Jobs("running")
	c.Assert(err, qt.IsNil)
	c.Assert(got.URL.Path, qt.Equals, "/jobs")
	c.Assert(got.URL.Query().Get(api.StatusQueryKey), qt.Equals, "running")
	c.Assert(jobs, qt.HasLen, 1)
	c.Assert(jobs[0].ID, qt.Equals, types.JobID(3))
	c.Assert(jobs[0].Status, qt.Equals, types.JobRunning)

	_, _, err = cli.Request(HTTPPOST, map[string]int{"a": 1}, []string{"k", "v", "dangling"}, "elections", "7")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Method, qt.Equals, http.MethodPost)
	c.Assert(got.URL.Path, qt.Equals, "/elections/7")
	c.Assert(got.URL.RawQuery, qt.Equals, "k=v")
	c.Assert(got.Header.Get("Content-Type"), qt.Equals, "application/json")
}

func TestAPIError(t *testing.T) {
	c := qt.New(t)
	cli := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		api.ErrResourceNotFound.Withf("job 9").Write(w)
	})
	_, err := cli.Job(9)
	var apiErr *APIError
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, api.ErrResourceNotFound.Code)
}

func TestRetries(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)
	srv.Close()

	cli.SetRetries(2)
	cli.SetRetryDelay(time.Millisecond)
	_, _, err = cli.Request(HTTPGET, nil, nil, api.ChainEndpoint)
	c.Assert(err, qt.ErrorMatches, "http request ultimately failed after 2 attempts.*")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cli.SetRetryDelay(time.Hour)
	_, _, err = cli.RequestContext(ctx, HTTPGET, nil, nil, api.ChainEndpoint)
	c.Assert(err, qt.IsNotNil)

	_, err = New("localhost")
	c.Assert(err, qt.ErrorMatches, `invalid API host "localhost"`)
}
