// Package script parses and replays recorded stroke scripts.
//
// A script is YAML:
//
//	name: seven
//	move_delay: 5ms
//	steps:
//	  - tool: ink
//	  - width: 20
//	  - down: [60, 50]
//	  - move: [220, 50]
//	  - path: [[180, 120], [140, 200], [120, 250]]
//	  - up: true
//	  - wait: 400ms
//	  - classify: true
//	  - clear: true
//
// Each step sets exactly one key.
package script

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"gopkg.in/yaml.v3"
)

// Kind names what a step does.
type Kind string

// Step kinds.
const (
	KindTool     Kind = "tool"
	KindWidth    Kind = "width"
	KindDown     Kind = "down"
	KindMove     Kind = "move"
	KindPath     Kind = "path"
	KindUp       Kind = "up"
	KindWait     Kind = "wait"
	KindClassify Kind = "classify"
	KindClear    Kind = "clear"
)

// Step is one decoded script action.
type Step struct {
	Kind   Kind
	Points []model.Point
	Wait   time.Duration
	Width  float64
	Tool   model.Tool
	Line   int
}

// Script is a parsed stroke script.
type Script struct {
	Name      string
	Steps     []Step
	MoveDelay time.Duration
}

type rawScript struct {
	Name      string      `yaml:"name"`
	MoveDelay string      `yaml:"move_delay"`
	Steps     []yaml.Node `yaml:"steps"`
}

type rawStep struct {
	Tool     *string     `yaml:"tool"`
	Width    *float64    `yaml:"width"`
	Down     []float64   `yaml:"down"`
	Move     []float64   `yaml:"move"`
	Path     [][]float64 `yaml:"path"`
	Up       *bool       `yaml:"up"`
	Wait     *string     `yaml:"wait"`
	Classify *bool       `yaml:"classify"`
	Clear    *bool       `yaml:"clear"`
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script. Errors name the offending step and its line.
func Parse(r io.Reader) (*Script, error) {
	var raw rawScript
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, common.InvalidArgumentf("script is empty")
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidArgument, err)
	}

	s := &Script{Name: raw.Name}
	if raw.MoveDelay != "" {
		d, err := time.ParseDuration(raw.MoveDelay)
		if err != nil || d < 0 {
			return nil, common.InvalidArgumentf("move_delay %q is not a non-negative duration", raw.MoveDelay)
		}
		s.MoveDelay = d
	}

	for i := range raw.Steps {
		node := &raw.Steps[i]
		step, err := decodeStep(node)
		if err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, node.Line, err)
		}
		step.Line = node.Line
		s.Steps = append(s.Steps, step)
	}

	if len(s.Steps) == 0 {
		return nil, common.InvalidArgumentf("script has no steps")
	}
	return s, nil
}

func decodeStep(node *yaml.Node) (Step, error) {
	if node.Kind != yaml.MappingNode {
		return Step{}, common.InvalidArgumentf("a step must be a mapping")
	}
	if len(node.Content) != 2 {
		return Step{}, common.InvalidArgumentf("a step sets exactly one key, got %d", len(node.Content)/2)
	}

	var raw rawStep
	if err := node.Decode(&raw); err != nil {
		return Step{}, fmt.Errorf("%w: %w", common.ErrInvalidArgument, err)
	}

	switch Kind(node.Content[0].Value) {
	case KindTool:
		if raw.Tool == nil {
			return Step{}, common.InvalidArgumentf("tool needs a name")
		}
		tool, err := model.ParseTool(*raw.Tool)
		if err != nil {
			return Step{}, fmt.Errorf("%w: %w", common.ErrInvalidArgument, err)
		}
		return Step{Kind: KindTool, Tool: tool}, nil

	case KindWidth:
		if raw.Width == nil {
			return Step{}, common.InvalidArgumentf("width needs a value")
		}
		return Step{Kind: KindWidth, Width: *raw.Width}, nil

	case KindDown:
		p, err := toPoint(raw.Down)
		return Step{Kind: KindDown, Points: []model.Point{p}}, err

	case KindMove:
		p, err := toPoint(raw.Move)
		return Step{Kind: KindMove, Points: []model.Point{p}}, err

	case KindPath:
		if len(raw.Path) == 0 {
			return Step{}, common.InvalidArgumentf("path needs at least one point")
		}
		points := make([]model.Point, 0, len(raw.Path))
		for _, xy := range raw.Path {
			p, err := toPoint(xy)
			if err != nil {
				return Step{}, err
			}
			points = append(points, p)
		}
		return Step{Kind: KindPath, Points: points}, nil

	case KindUp:
		return Step{Kind: KindUp}, flag(raw.Up, KindUp)

	case KindWait:
		if raw.Wait == nil {
			return Step{}, common.InvalidArgumentf("wait needs a duration")
		}
		d, err := time.ParseDuration(*raw.Wait)
		if err != nil || d < 0 {
			return Step{}, common.InvalidArgumentf("wait %q is not a non-negative duration", *raw.Wait)
		}
		return Step{Kind: KindWait, Wait: d}, nil

	case KindClassify:
		return Step{Kind: KindClassify}, flag(raw.Classify, KindClassify)

	case KindClear:
		return Step{Kind: KindClear}, flag(raw.Clear, KindClear)

	default:
		return Step{}, common.InvalidArgumentf("unknown step %q", node.Content[0].Value)
	}
}

func toPoint(xy []float64) (model.Point, error) {
	if len(xy) != 2 {
		return model.Point{}, common.InvalidArgumentf("a point is [x, y], got %v", xy)
	}
	p := model.Point{X: xy[0], Y: xy[1]}
	if !p.Valid() {
		return model.Point{}, common.InvalidArgumentf("malformed point %v", xy)
	}
	return p, nil
}

// flag accepts only `key: true`.
func flag(v *bool, kind Kind) error {
	if v == nil || !*v {
		return common.InvalidArgumentf("%s must be true", kind)
	}
	return nil
}
