package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgate"
	"github.com/hupe1980/vecgate/codec"
	"github.com/hupe1980/vecgate/index"
)

// pairEngine is a 2-d engine that returns labels 5 and None for every query.
type pairEngine struct {
	err error
}

func (pairEngine) Dimension() int { return 2 }

func (e pairEngine) Search(queries []float32, k int) (*index.SearchResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	res := index.NewSearchResult(len(queries)/2, k)
	for q := 0; q < len(queries)/2; q++ {
		if k > 0 {
			res.Labels[q*k] = index.Some(5)
			res.Distances[q*k] = 0.5
		}
	}
	return res, nil
}

// overflowEngine returns an infinite distance, as squared L2 does for very
// large components.
type overflowEngine struct{}

func (overflowEngine) Dimension() int { return 2 }

func (overflowEngine) Search(queries []float32, k int) (*index.SearchResult, error) {
	res := index.NewSearchResult(len(queries)/2, k)
	res.Labels[0] = index.Some(0)
	res.Distances[0] = float32(math.Inf(1))
	return res, nil
}

type staticMetrics string

func (m staticMetrics) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, string(m))
	return err
}

func newTestServer(t *testing.T, engine index.Searcher, opts ...Option) *Server {
	t.Helper()

	exec, err := vecgate.NewExecutor(vecgate.NewHandle(engine, "memory://test"), vecgate.WithMaxK(10))
	require.NoError(t, err)
	t.Cleanup(exec.Close)

	return New(Config{Addr: ":0"}, exec, opts...)
}

func post(s *Server, path, body string) *ut.ResponseRecorder {
	b := []byte(body)
	return ut.PerformRequest(s.Engine(), "POST", path,
		&ut.Body{Body: bytes.NewReader(b), Len: len(b)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func get(s *Server, path string) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine(), "GET", path, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
}

func TestNew_ListenerOptions(t *testing.T) {
	exec, err := vecgate.NewExecutor(vecgate.NewHandle(pairEngine{}, "memory://test"))
	require.NoError(t, err)
	t.Cleanup(exec.Close)

	s := New(Config{
		Addr:         ":0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		ExitWait:     time.Second,
		MaxBodyBytes: 1 << 20,
	}, exec)

	resp := post(s, "/v1/search", `{"vectors":[[1,2]],"k":1}`).Result()
	assert.Equal(t, 200, resp.StatusCode())
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, pairEngine{})

	for _, path := range []string{"/faiss/search", "/v1/search"} {
		t.Run(path, func(t *testing.T) {
			w := post(s, path, `{"vectors":[[1,2],[3,4]],"k":2}`)
			resp := w.Result()
			require.Equal(t, 200, resp.StatusCode())

			var out vecgate.Response
			require.NoError(t, codec.Default.Unmarshal(resp.Body(), &out))
			require.Len(t, out.Results, 2)
			assert.Equal(t, []vecgate.Neighbor{{ID: 5, Score: 0.5}}, out.Results[0].Neighbors)
			assert.Equal(t, []float32{3, 4}, out.Results[1].Vector)
			assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
		})
	}
}

func TestSearch_KZeroReturnsEmptyLists(t *testing.T) {
	s := newTestServer(t, pairEngine{})

	w := post(s, "/v1/search", `{"vectors":[[1,2]],"k":0}`)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	assert.JSONEq(t, `{"results":[{"neighbors":[],"vector":[1,2]}]}`, string(resp.Body()))
}

func TestSearch_OverflowingScoreIsValidJSON(t *testing.T) {
	s := newTestServer(t, overflowEngine{})

	resp := post(s, "/faiss/search", `{"vectors":[[1e30,1e30]],"k":1}`).Result()
	require.Equal(t, 200, resp.StatusCode())
	require.True(t, json.Valid(resp.Body()), string(resp.Body()))

	var out vecgate.Response
	require.NoError(t, codec.Default.Unmarshal(resp.Body(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, []vecgate.Neighbor{{ID: 0, Score: math.MaxFloat32}}, out.Results[0].Neighbors)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		engine index.Searcher
		body   string
		status int
		want   string
	}{
		{
			name:   "DimensionMismatch",
			engine: pairEngine{},
			body:   `{"vectors":[[1,2,3]],"k":1}`,
			status: 400,
			want:   `{"error":"Provided vectors has different dimensions than the index"}`,
		},
		{
			name:   "KTooLarge",
			engine: pairEngine{},
			body:   `{"vectors":[[1,2]],"k":11}`,
			status: 400,
			want:   `{"error":"k must be between 0 and 10, got 11"}`,
		},
		{
			name:   "EngineFailure",
			engine: pairEngine{err: errors.New("boom")},
			body:   `{"vectors":[[1,2]],"k":1}`,
			status: 500,
			want:   `{"error":"search failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.engine)
			resp := post(s, "/faiss/search", tt.body).Result()
			assert.Equal(t, tt.status, resp.StatusCode())
			assert.JSONEq(t, tt.want, string(resp.Body()))
		})
	}

	t.Run("MalformedBody", func(t *testing.T) {
		s := newTestServer(t, pairEngine{})
		resp := post(s, "/faiss/search", `{"vectors":`).Result()
		assert.Equal(t, 400, resp.StatusCode())
		assert.Contains(t, string(resp.Body()), "invalid request body")
	})
}

func TestRequestID_Propagated(t *testing.T) {
	s := newTestServer(t, pairEngine{})

	b := []byte(`{"vectors":[[1,2]],"k":1}`)
	w := ut.PerformRequest(s.Engine(), "POST", "/v1/search",
		&ut.Body{Body: bytes.NewReader(b), Len: len(b)},
		ut.Header{Key: RequestIDHeader, Value: "req-42"},
	)
	assert.Equal(t, "req-42", w.Result().Header.Get(RequestIDHeader))
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t, pairEngine{})

	w := get(s, "/health")
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(w.Result().Body()))

	w = get(s, "/v1/index")
	require.Equal(t, 200, w.Result().StatusCode())

	var info vecgate.IndexInfo
	require.NoError(t, codec.Default.Unmarshal(w.Result().Body(), &info))
	assert.Equal(t, "memory://test", info.Location)
	assert.Equal(t, 2, info.Dimension)
}

func TestMetrics(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s := newTestServer(t, pairEngine{})
		w := get(s, "/metrics")
		assert.Equal(t, 404, w.Result().StatusCode())
	})

	t.Run("Enabled", func(t *testing.T) {
		s := newTestServer(t, pairEngine{}, WithMetrics(staticMetrics("vecgate_requests_total 1\n")))
		w := get(s, "/metrics")
		assert.Equal(t, 200, w.Result().StatusCode())
		assert.Equal(t, "vecgate_requests_total 1\n", string(w.Result().Body()))
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&vecgate.ValidationError{Reason: vecgate.ErrInvalidK, Message: "bad k"}, 400},
		{vecgate.ErrOverloaded, 429},
		{vecgate.ErrExecutorClosed, 503},
		{context.DeadlineExceeded, 504},
		{&vecgate.SearchError{Err: errors.New("x")}, 500},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
