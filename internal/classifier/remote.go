package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/service"
)

// RemoteConfig configures a v2 inference protocol client.
// RequestsPerMinute caps inference calls; zero means unlimited.
type RemoteConfig struct {
	BaseURL           string
	Model             string
	Timeout           time.Duration
	Retry             service.RetryOptions
	RequestsPerMinute int
}

// Remote calls a model server that speaks the v2 inference protocol, as
// served by KServe, Triton and similar.
type Remote struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rateLimiter
	baseURL    string
	model      string
	inputName  string
	retry      service.RetryOptions
	mu         sync.RWMutex
	ready      bool
}

// NewRemote creates an unloaded remote backend.
func NewRemote(cfg RemoteConfig, logger *slog.Logger) (*Remote, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: remote classifier needs a base URL", common.ErrMissingConfig)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: remote URL: %w", common.ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		}
	}

	return &Remote{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		inputName: "input",
		retry:     retry,
		logger:    logger,
		limiter:   newRateLimiter(cfg.RequestsPerMinute),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type v2Tensor struct {
	Name     string    `json:"name"`
	Datatype string    `json:"datatype"`
	Shape    []int64   `json:"shape"`
	Data     []float32 `json:"data"`
}

type v2InferRequest struct {
	Inputs []v2Tensor `json:"inputs"`
}

type v2InferResponse struct {
	ModelName string     `json:"model_name"`
	Error     string     `json:"error,omitempty"`
	Outputs   []v2Tensor `json:"outputs"`
}

type v2ModelMetadata struct {
	Name   string `json:"name"`
	Inputs []struct {
		Name     string  `json:"name"`
		Datatype string  `json:"datatype"`
		Shape    []int64 `json:"shape"`
	} `json:"inputs"`
}

// Load waits for the model to report ready. The configured model name wins;
// otherwise modelPath is used as the name.
func (r *Remote) Load(ctx context.Context, modelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return common.ErrAlreadyLoaded
	}
	if r.model == "" {
		r.model = modelPath
	}
	if r.model == "" {
		return fmt.Errorf("%w: remote model name", common.ErrMissingConfig)
	}

	err := common.WithRetry(ctx, func() error {
		return r.checkReady(ctx)
	}, r.retry)
	if err != nil {
		return fmt.Errorf("model %s not ready: %w", r.model, err)
	}

	if name, err := r.fetchInputName(ctx); err != nil {
		r.logger.Debug("model metadata unavailable, using default input name", "error", err)
	} else if name != "" {
		r.inputName = name
	}

	r.ready = true
	r.logger.Info("remote model ready", "url", r.baseURL, "model", r.model, "input", r.inputName)
	return nil
}

func (r *Remote) modelURL(suffix string) string {
	return r.baseURL + "/v2/models/" + url.PathEscape(r.model) + suffix
}

func (r *Remote) checkReady(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.modelURL("/ready"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return checkStatus(resp, nil)
}

func (r *Remote) fetchInputName(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.modelURL(""), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := checkStatus(resp, body); err != nil {
		return "", err
	}

	var meta v2ModelMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(meta.Inputs) == 0 {
		return "", nil
	}
	return meta.Inputs[0].Name, nil
}

// Run posts one inference request and returns the first output's data.
func (r *Remote) Run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	if err := checkShape(input, shape); err != nil {
		return nil, err
	}

	r.mu.RLock()
	ready, inputName := r.ready, r.inputName
	r.mu.RUnlock()
	if !ready {
		return nil, common.ErrClassifierUnavailable
	}
	if err := r.limiter.wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(v2InferRequest{Inputs: []v2Tensor{{
		Name:     inputName,
		Datatype: "FP32",
		Shape:    shape,
		Data:     input,
	}}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.modelURL("/infer"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := checkStatus(resp, respBody); err != nil {
		return nil, err
	}

	var response v2InferResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("model server error: %s", response.Error)
	}
	if len(response.Outputs) == 0 {
		return nil, common.ErrEmptyScores
	}
	return response.Outputs[0].Data, nil
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	r.mu.Lock()
	r.ready = false
	r.mu.Unlock()
	return nil
}

// checkStatus labels a failed exchange as coming from the model server.
func checkStatus(resp *http.Response, body []byte) error {
	if err := common.CheckStatus(resp, body); err != nil {
		return fmt.Errorf("model server error: %w", err)
	}
	return nil
}
