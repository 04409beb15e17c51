package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Saving then loading a state file round-trips the meaningful fields.
func TestPersistor_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPersistor(path, testLogger())

	cfg := DefaultConfig()
	state := NewBotState(cfg)
	state.State = StateHolding
	state.CumulativeStats.TotalCycles = 4

	require.NoError(t, p.Save(state))

	loaded, usedDefault := p.Load(cfg)
	assert.False(t, usedDefault)
	assert.Equal(t, StateHolding, loaded.State)
	assert.Equal(t, 4, loaded.CumulativeStats.TotalCycles)
}

// Missing state file: Load falls back to fresh defaults without error.
func TestPersistor_Load_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	p := NewPersistor(path, testLogger())

	cfg := DefaultConfig()
	state, usedDefault := p.Load(cfg)
	assert.True(t, usedDefault)
	assert.Equal(t, StateIdle, state.State)
}

// Unparseable state file: Load logs and falls back to fresh defaults,
// never returning an error or crashing the caller.
func TestPersistor_Load_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))
	p := NewPersistor(path, testLogger())

	cfg := DefaultConfig()
	state, usedDefault := p.Load(cfg)
	assert.True(t, usedDefault)
	assert.Equal(t, StateIdle, state.State)
}

// Save always leaves the target path containing either the previous valid
// content or the new valid content, never a truncated write, because it
// writes to a .tmp file and renames over the target atomically.
func TestPersistor_Save_NeverLeavesTmpFileBehindOnSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPersistor(path, testLogger())

	require.NoError(t, p.Save(NewBotState(DefaultConfig())))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp file must not survive a successful save")

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), `"state": "IDLE"`)
}

func TestPersistor_Save_SecondSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPersistor(path, testLogger())

	first := NewBotState(DefaultConfig())
	first.State = StateAnalyzing
	require.NoError(t, p.Save(first))

	second := NewBotState(DefaultConfig())
	second.State = StateHolding
	require.NoError(t, p.Save(second))

	loaded, usedDefault := p.Load(DefaultConfig())
	require.False(t, usedDefault)
	assert.Equal(t, StateHolding, loaded.State)
}
