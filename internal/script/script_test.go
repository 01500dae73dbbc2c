package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sevenScript = `
name: seven
move_delay: 5ms
steps:
  - tool: ink
  - width: 20
  - down: [60, 50]
  - move: [220, 50]
  - path: [[180, 120], [140, 200], [120, 250]]
  - up: true
  - wait: 400ms
  - classify: true
  - tool: eraser
  - clear: true
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sevenScript))
	require.NoError(t, err)

	assert.Equal(t, "seven", s.Name)
	assert.Equal(t, 5*time.Millisecond, s.MoveDelay)
	require.Len(t, s.Steps, 10)

	assert.Equal(t, KindTool, s.Steps[0].Kind)
	assert.Equal(t, model.ToolInk, s.Steps[0].Tool)
	assert.InDelta(t, 20, s.Steps[1].Width, 1e-9)
	assert.Equal(t, []model.Point{{X: 60, Y: 50}}, s.Steps[2].Points)
	assert.Equal(t, KindPath, s.Steps[4].Kind)
	assert.Len(t, s.Steps[4].Points, 3)
	assert.Equal(t, KindUp, s.Steps[5].Kind)
	assert.Equal(t, 400*time.Millisecond, s.Steps[6].Wait)
	assert.Equal(t, KindClassify, s.Steps[7].Kind)
	assert.Equal(t, model.ToolErase, s.Steps[8].Tool)
	assert.Equal(t, KindClear, s.Steps[9].Kind)
	assert.Equal(t, 7, s.Steps[2].Line)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty", "", "script is empty"},
		{"no steps", "name: x\n", "no steps"},
		{"unknown top-level key", "nme: x\nsteps:\n  - up: true\n", "nme"},
		{"two keys in a step", "steps:\n  - down: [1, 2]\n    up: true\n", "exactly one key"},
		{"scalar step", "steps:\n  - up\n", "must be a mapping"},
		{"unknown step", "steps:\n  - jump: true\n", `unknown step "jump"`},
		{"bad tool", "steps:\n  - tool: crayon\n", "crayon"},
		{"missing tool", "steps:\n  - tool:\n", "tool needs a name"},
		{"short point", "steps:\n  - down: [1]\n", "a point is [x, y]"},
		{"nan point", "steps:\n  - move: [.nan, 1]\n", "malformed point"},
		{"empty path", "steps:\n  - path: []\n", "at least one point"},
		{"up false", "steps:\n  - up: false\n", "up must be true"},
		{"bad wait", "steps:\n  - wait: soon\n", `wait "soon"`},
		{"negative wait", "steps:\n  - wait: -1s\n", "non-negative"},
		{"bad move delay", "move_delay: fast\nsteps:\n  - up: true\n", "move_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseErrorNamesLine(t *testing.T) {
	_, err := Parse(strings.NewReader("steps:\n  - up: true\n  - down: [1]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (line 3)")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seven.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sevenScript), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 10)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
