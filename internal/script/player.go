package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
)

// Pad is what a script drives. *pad.Controller implements it.
type Pad interface {
	Press(p model.Point) error
	Move(p model.Point) error
	Release() bool
	SetTool(tool model.Tool) error
	SetWidth(width float64) (float64, error)
	Clear()
	Classify()
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Player replays scripts against a pad with real delays.
type Player struct {
	pad    Pad
	sleep  SleepFunc
	logger *slog.Logger
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithSleep replaces the real-time sleep.
func WithSleep(f SleepFunc) PlayerOption {
	return func(p *Player) {
		if f != nil {
			p.sleep = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlayer creates a player for pad.
func NewPlayer(pad Pad, opts ...PlayerOption) *Player {
	p := &Player{pad: pad, sleep: sleep, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play runs every step in order. A pointer still down at the end is
// released.
func (p *Player) Play(ctx context.Context, s *Script) error {
	p.logger.Debug("replaying script", "name", s.Name, "steps", len(s.Steps))

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.apply(ctx, s, step); err != nil {
			return fmt.Errorf("step %d (line %d, %s): %w", i+1, step.Line, step.Kind, err)
		}
	}

	if p.pad.Release() {
		p.logger.Debug("released pointer left down at end of script", "name", s.Name)
	}
	return nil
}

func (p *Player) apply(ctx context.Context, s *Script, step Step) error {
	switch step.Kind {
	case KindTool:
		return p.pad.SetTool(step.Tool)

	case KindWidth:
		_, err := p.pad.SetWidth(step.Width)
		return err

	case KindDown:
		return p.pad.Press(step.Points[0])

	case KindMove, KindPath:
		for _, pt := range step.Points {
			if err := p.sleep(ctx, s.MoveDelay); err != nil {
				return err
			}
			if err := p.pad.Move(pt); err != nil {
				return err
			}
		}
		return nil

	case KindUp:
		p.pad.Release()
		return nil

	case KindWait:
		return p.sleep(ctx, step.Wait)

	case KindClassify:
		p.pad.Classify()
		return nil

	case KindClear:
		p.pad.Clear()
		return nil

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
