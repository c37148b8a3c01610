package tailer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Position records how far into the log file the tailer has read.
type Position struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
}

// Checkpoint persists the read position so a restarted watch resumes where
// it left off instead of re-emitting the whole file.
type Checkpoint struct {
	mu   sync.Mutex
	path string
}

// NewCheckpoint creates a checkpoint backed by the file at path. An empty
// path disables persistence.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Load returns the saved position, or a zero position when no checkpoint
// exists yet.
func (c *Checkpoint) Load() (Position, error) {
	var pos Position
	if c.path == "" {
		return pos, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return pos, nil
		}
		return pos, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	if err := json.Unmarshal(data, &pos); err != nil {
		return Position{}, fmt.Errorf("failed to unmarshal checkpoint data: %w", err)
	}
	return pos, nil
}

// Save writes the position. A temp file plus rename keeps a crashed save
// from corrupting the previous checkpoint.
func (c *Checkpoint) Save(pos Position) error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint data: %w", err)
	}

	tmpFile := c.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpFile, c.path); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}
