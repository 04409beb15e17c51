package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Persistor owns the on-disk state file. Every other component reads and
// writes in-memory state only through this single owner, serializing
// mutators through one entry point rather than letting several components
// write the file concurrently.
type Persistor struct {
	path string
	log  zerolog.Logger
}

// NewPersistor builds a Persistor bound to path.
func NewPersistor(path string, log zerolog.Logger) *Persistor {
	return &Persistor{path: path, log: log}
}

// Save writes state atomically: write to <path>.tmp, fsync, rename over the
// target, with a retry loop so a crash mid-write can never leave a
// truncated file in place.
func (p *Persistor) Save(state BotState) error {
	state.LastUpdated = time.Now().UTC()

	bs, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	var lastErr error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		if err := p.writeAtomic(bs); err != nil {
			lastErr = err
			p.log.Warn().Int("attempt", attempt).Err(err).Msg("state persist attempt failed")
			continue
		}
		return nil
	}
	return fmt.Errorf("persist state after retries: %w", lastErr)
}

func (p *Persistor) writeAtomic(bs []byte) error {
	tmp := p.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(bs); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

// Load reads and parses the state file. A missing or unparseable file is
// never an error to the caller — it returns NewBotState(cfg) with
// usedDefault=true instead of crashing. An unreadable or unparseable file is
// logged as a warning here; a missing file is not logged here (the caller
// sees usedDefault).
func (p *Persistor) Load(cfg Config) (state BotState, usedDefault bool) {
	bs, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.Warn().Err(err).Msg("state file unreadable, starting fresh")
		}
		return NewBotState(cfg), true
	}

	var st BotState
	if err := json.Unmarshal(bs, &st); err != nil {
		p.log.Warn().Err((&StateCorruptError{Path: p.path, Err: err})).Msg("state file unparseable, starting fresh")
		return NewBotState(cfg), true
	}
	if st.Version == 0 {
		st.Version = stateFileVersion
	}
	return st, false
}
