package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

// Default timings.
const (
	DefaultDebounce   = 300 * time.Millisecond
	DefaultRunTimeout = 5 * time.Second
)

// State is the classifier lifecycle of a pipeline.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// TimerFunc schedules f to run once after d.
type TimerFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Pipeline turns surface activity into predictions.
type Pipeline struct {
	lastPrediction model.Prediction
	sampler        service.Sampler
	classifier     service.Classifier
	sink           service.PredictionSink
	timer          Timer
	loadErr        error
	ctx            context.Context
	cancel         context.CancelFunc
	logger         *slog.Logger
	schedule       TimerFunc
	idle           *sync.Cond
	pendingTrigger model.Trigger
	debounce       time.Duration
	runTimeout     time.Duration
	inputWidth     int
	inputHeight    int
	state          State
	generation     uint64
	epoch          uint64
	mu             sync.Mutex
	publishMu      sync.Mutex
	loading        bool
	busy           bool
	pending        bool
	hasPrediction  bool
	closed         bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDebounce sets the quiet period after the last stroke extension.
func WithDebounce(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithRunTimeout bounds a single classifier call.
func WithRunTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.runTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTimerFunc replaces time.AfterFunc for debounce scheduling.
func WithTimerFunc(f TimerFunc) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.schedule = f
		}
	}
}

// WithInputSize sets the sampled grid size.
func WithInputSize(width, height int) Option {
	return func(p *Pipeline) {
		if width > 0 && height > 0 {
			p.inputWidth = width
			p.inputHeight = height
		}
	}
}

// New creates a pipeline in the idle state. Call Load before triggers have
// any effect. The sink is called from pipeline goroutines and must not call
// Reset. The sampler is called with the pipeline locked and must not call
// back into it.
func New(sampler service.Sampler, classifier service.Classifier, sink service.PredictionSink, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		sampler:     sampler,
		classifier:  classifier,
		sink:        sink,
		logger:      slog.Default(),
		schedule:    afterFunc,
		debounce:    DefaultDebounce,
		runTimeout:  DefaultRunTimeout,
		inputWidth:  model.InputWidth,
		inputHeight: model.InputHeight,
		ctx:         ctx,
		cancel:      cancel,
	}
	p.idle = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load initializes the classifier. A failure leaves the pipeline unavailable
// for good; the error is reported to the sink once and returned.
func (p *Pipeline) Load(ctx context.Context, modelPath string) error {
	p.mu.Lock()
	switch {
	case p.state == StateReady, p.loading:
		p.mu.Unlock()
		return common.ErrAlreadyLoaded
	case p.state == StateUnavailable:
		err := p.loadErr
		p.mu.Unlock()
		return err
	}
	p.loading = true
	p.mu.Unlock()

	start := time.Now()
	err := p.load(ctx, modelPath)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		err = &common.LoadError{Path: modelPath, Err: err}
		p.state = StateUnavailable
		p.loadErr = err
	} else {
		p.state = StateReady
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("classifier unavailable", "model", modelPath, "error", err)
		p.sink.Report(err)
		return err
	}

	p.logger.Info("classifier loaded", "model", modelPath, "duration", time.Since(start))
	return nil
}

func (p *Pipeline) load(ctx context.Context, modelPath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	return p.classifier.Load(ctx, modelPath)
}

// StrokeExtended re-arms the debounce timer. Only the most recent arm fires.
func (p *Pipeline) StrokeExtended() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.acceptingLocked() {
		return
	}

	p.generation++
	gen := p.generation
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.schedule(p.debounce, func() { p.fire(gen) })
}

// StrokeEnded cancels a pending debounce and triggers inference now.
func (p *Pipeline) StrokeEnded() {
	p.trigger(model.TriggerStrokeEnd)
}

// RunInference triggers inference now.
func (p *Pipeline) RunInference() {
	p.trigger(model.TriggerManual)
}

func (p *Pipeline) trigger(trigger model.Trigger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.acceptingLocked() {
		return
	}
	p.cancelDebounceLocked()
	p.startLocked(trigger)
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation || !p.acceptingLocked() {
		return
	}
	p.timer = nil
	p.startLocked(model.TriggerDebounce)
}

func (p *Pipeline) acceptingLocked() bool {
	return p.state == StateReady && !p.closed
}

func (p *Pipeline) cancelDebounceLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// job is one run's input, sampled when the run was triggered.
type job struct {
	err     error
	input   []float32
	shape   []int64
	trigger model.Trigger
	epoch   uint64
}

// sampleLocked copies the surface for a run. Later strokes cannot reach an
// input once it has been taken.
func (p *Pipeline) sampleLocked(trigger model.Trigger) job {
	j := job{trigger: trigger, epoch: p.epoch}
	j.input, j.shape, j.err = sample(p.sampler, p.inputWidth, p.inputHeight)
	return j
}

// startLocked samples and begins a run, or records one pending run if busy.
func (p *Pipeline) startLocked(trigger model.Trigger) {
	if p.busy {
		p.pending = true
		p.pendingTrigger = trigger
		return
	}
	p.busy = true
	go p.work(p.sampleLocked(trigger))
}

// work runs inference until no trigger is pending. A pending trigger gets a
// fresh sample once the current run has finished.
func (p *Pipeline) work(j job) {
	for {
		prediction, err := p.runOnce(j)
		p.publish(prediction, err, j.epoch)

		p.mu.Lock()
		if !p.pending || !p.acceptingLocked() {
			p.pending = false
			p.busy = false
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		p.pending = false
		j = p.sampleLocked(p.pendingTrigger)
		p.mu.Unlock()
	}
}

func (p *Pipeline) runOnce(j job) (model.Prediction, error) {
	if j.err != nil {
		return model.Prediction{}, &common.RunError{Trigger: string(j.trigger), Err: j.err}
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.runTimeout)
	defer cancel()

	prediction, err := classifyInput(ctx, p.classifier, j.input, j.shape)
	if err != nil {
		return model.Prediction{}, &common.RunError{Trigger: string(j.trigger), Err: err}
	}
	prediction.Trigger = j.trigger

	p.logger.Debug("inference complete",
		"trigger", j.trigger,
		"label", prediction.Label,
		"confidence", prediction.Confidence,
		"duration", time.Since(start))
	return prediction, nil
}

// publish delivers a run result unless a Reset happened after its sample.
func (p *Pipeline) publish(prediction model.Prediction, err error, epoch uint64) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.Lock()
	stale := epoch != p.epoch
	if !stale && err == nil {
		p.lastPrediction = prediction
		p.hasPrediction = true
	}
	p.mu.Unlock()

	if stale {
		p.logger.Debug("dropping result from before reset", "error", err)
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("inference failed", "error", err)
		}
		p.sink.Report(err)
		return
	}
	p.sink.Publish(prediction)
}

// Reset cancels a pending debounce, discards results of runs sampled before
// the call and publishes an unknown prediction.
func (p *Pipeline) Reset() {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.Lock()
	p.cancelDebounceLocked()
	p.pending = false
	p.epoch++
	p.hasPrediction = false
	p.lastPrediction = model.Prediction{}
	p.mu.Unlock()

	p.sink.Publish(model.UnknownPrediction(model.TriggerReset))
}

// State returns the classifier lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsAvailable reports whether the classifier has not failed to load.
func (p *Pipeline) IsAvailable() bool {
	return p.State() != StateUnavailable
}

// Busy reports whether a run is in flight.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// LastPrediction returns the most recent published prediction since the last Reset.
func (p *Pipeline) LastPrediction() (model.Prediction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPrediction, p.hasPrediction
}

// Wait blocks until no run is in flight or pending. An armed debounce timer
// is not waited for.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.busy {
		p.idle.Wait()
	}
}

// Close stops scheduling, cancels the in-flight run and waits for it. The
// classifier itself is not closed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.cancelDebounceLocked()
	p.pending = false
	p.mu.Unlock()

	p.cancel()
	p.Wait()
}
