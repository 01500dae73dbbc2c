package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

// fakeModelServer answers the v2 protocol for one model.
type fakeModelServer struct {
	t           *testing.T
	lastRequest v2InferRequest
	scores      []float32
	readyChecks atomic.Int32
	inferCalls  atomic.Int32
	inferStatus int
	notReadyFor int32
	mu          sync.Mutex
}

func (f *fakeModelServer) request() v2InferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

func (f *fakeModelServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v2/models/digits/ready":
		if f.readyChecks.Add(1) <= f.notReadyFor {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Path == "/v2/models/digits":
		_, _ = w.Write([]byte(`{"name":"digits","inputs":[{"name":"pixels","datatype":"FP32","shape":[-1,1,28,28]}]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v2/models/digits/infer":
		f.inferCalls.Add(1)
		assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))
		var req v2InferRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.lastRequest = req
		f.mu.Unlock()
		if f.inferStatus != 0 {
			http.Error(w, "boom", f.inferStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(v2InferResponse{
			ModelName: "digits",
			Outputs: []v2Tensor{{
				Name:     "logits",
				Datatype: "FP32",
				Shape:    []int64{1, int64(len(f.scores))},
				Data:     f.scores,
			}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestRemote(t *testing.T, handler http.Handler, model string) *Remote {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r, err := NewRemote(RemoteConfig{
		BaseURL: server.URL + "/",
		Model:   model,
		Timeout: time.Second,
		Retry:   fastRetry,
	}, common.DiscardLogger())
	require.NoError(t, err)
	return r
}

func TestNewRemote(t *testing.T) {
	_, err := NewRemote(RemoteConfig{}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewRemote(RemoteConfig{BaseURL: "not a url"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	r, err := NewRemote(RemoteConfig{BaseURL: "http://localhost:8000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, r.retry.MaxAttempts)
}

func TestRemoteLoadAndRun(t *testing.T) {
	ctx := context.Background()
	server := &fakeModelServer{t: t, scores: []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, notReadyFor: 2}
	r := newTestRemote(t, server, "")

	_, err := r.Run(ctx, make([]float32, 784), []int64{1, 1, 28, 28})
	assert.ErrorIs(t, err, common.ErrClassifierUnavailable)

	require.NoError(t, r.Load(ctx, "digits"))
	assert.Equal(t, int32(3), server.readyChecks.Load(), "not-ready answers are retried")
	assert.ErrorIs(t, r.Load(ctx, "digits"), common.ErrAlreadyLoaded)

	input := make([]float32, 784)
	input[10] = 0.5
	scores, err := r.Run(ctx, input, []int64{1, 1, 28, 28})
	require.NoError(t, err)
	assert.Equal(t, server.scores, scores)

	sent := server.request()
	require.Len(t, sent.Inputs, 1)
	tensor := sent.Inputs[0]
	assert.Equal(t, "pixels", tensor.Name, "input name comes from model metadata")
	assert.Equal(t, "FP32", tensor.Datatype)
	assert.Equal(t, []int64{1, 1, 28, 28}, tensor.Shape)
	assert.InDelta(t, 0.5, tensor.Data[10], 1e-6)

	_, err = r.Run(ctx, input[:10], []int64{1, 1, 28, 28})
	assert.ErrorIs(t, err, common.ErrShapeMismatch)
	assert.Equal(t, int32(1), server.inferCalls.Load())

	require.NoError(t, r.Close())
	_, err = r.Run(ctx, input, []int64{1, 1, 28, 28})
	assert.ErrorIs(t, err, common.ErrClassifierUnavailable)
}

func TestRemoteConfiguredModelWins(t *testing.T) {
	server := &fakeModelServer{t: t, scores: []float32{1}}
	r := newTestRemote(t, server, "digits")
	require.NoError(t, r.Load(context.Background(), "model.onnx"))
}

func TestRemoteLoadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("never ready", func(t *testing.T) {
		server := &fakeModelServer{t: t, notReadyFor: 100}
		r := newTestRemote(t, server, "digits")
		err := r.Load(ctx, "")
		assert.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, int32(fastRetry.MaxAttempts), server.readyChecks.Load())
	})

	t.Run("unknown model is not retried", func(t *testing.T) {
		var hits atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		})
		r := newTestRemote(t, handler, "missing")
		assert.Error(t, r.Load(ctx, ""))
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("no model name", func(t *testing.T) {
		r := newTestRemote(t, http.NotFoundHandler(), "")
		assert.ErrorIs(t, r.Load(ctx, ""), common.ErrMissingConfig)
	})
}

func TestRemoteRunFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("server error", func(t *testing.T) {
		server := &fakeModelServer{t: t, inferStatus: http.StatusInternalServerError}
		r := newTestRemote(t, server, "digits")
		require.NoError(t, r.Load(ctx, ""))

		_, err := r.Run(ctx, []float32{1}, []int64{1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("no outputs", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_, _ = w.Write([]byte(`{"model_name":"digits","outputs":[]}`))
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		r := newTestRemote(t, handler, "digits")
		require.NoError(t, r.Load(ctx, ""))

		_, err := r.Run(ctx, []float32{1}, []int64{1})
		assert.ErrorIs(t, err, common.ErrEmptyScores)
	})
}

func TestCheckStatus(t *testing.T) {
	respond := func(code int) *http.Response {
		return &http.Response{StatusCode: code, Header: http.Header{}}
	}

	assert.NoError(t, checkStatus(respond(http.StatusOK), nil))

	err := checkStatus(respond(http.StatusBadRequest), []byte("bad shape"))
	assert.EqualError(t, err, "model server error: status 400: bad shape")
	assert.False(t, common.IsRetryable(err))

	assert.True(t, common.IsRetryable(checkStatus(respond(http.StatusServiceUnavailable), nil)))
	assert.ErrorIs(t, checkStatus(respond(http.StatusTooManyRequests), nil), common.ErrRateLimit)
}
