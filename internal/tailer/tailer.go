// Package tailer follows a growing access log file and feeds each newly
// appended line through the same parse path the batch runner uses.
package tailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sravanigadey/s3audit/internal/batch"
	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/pkg/types"
)

// pollInterval backs up fsnotify for filesystems that deliver no events.
const pollInterval = 5 * time.Second

// Tailer follows one log file and emits merged records as lines appear.
// Records come out in file order; incomplete trailing lines are held back
// until their newline arrives.
type Tailer struct {
	path       string
	runner     *batch.Runner
	checkpoint *Checkpoint
	logger     *logging.Logger
	watcher    *fsnotify.Watcher

	recordCh chan types.Record
	offset   int64
	partial  strings.Builder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a tailer for the file at path. checkpointPath may be empty
// to disable resume.
func New(path string, runner *batch.Runner, checkpointPath string, logger *logging.Logger) (*Tailer, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Tailer{
		path:       path,
		runner:     runner,
		checkpoint: NewCheckpoint(checkpointPath),
		logger:     logger.WithComponent("tailer"),
		watcher:    watcher,
		recordCh:   make(chan types.Record, 1000),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Records returns the channel merged records are delivered on. It is
// closed when the tailer stops.
func (t *Tailer) Records() <-chan types.Record {
	return t.recordCh
}

// Start begins following the file. Existing content beyond the saved
// checkpoint is emitted first.
func (t *Tailer) Start() error {
	pos, err := t.checkpoint.Load()
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to load checkpoint, starting from the beginning")
	} else if pos.Path == t.path {
		t.offset = pos.Offset
	}

	// Watch the parent directory so creation and rotation of the file
	// itself are observed.
	dir := filepath.Dir(t.path)
	if err := t.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	t.wg.Add(1)
	go t.run()
	return nil
}

// Stop halts the tailer, saves the checkpoint and closes the record channel.
func (t *Tailer) Stop() error {
	t.cancel()
	t.wg.Wait()
	t.watcher.Close()
	return t.checkpoint.Save(Position{Path: t.path, Offset: t.offset})
}

func (t *Tailer) run() {
	defer t.wg.Done()
	defer close(t.recordCh)

	// Catch up with whatever is already in the file.
	t.drain()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Name != t.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.drain()
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn().Err(err).Msg("File watcher error")
		case <-ticker.C:
			t.drain()
		}
	}
}

// drain reads everything appended since the last offset and emits the
// complete lines.
func (t *Tailer) drain() {
	file, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Msg("Failed to open watched file")
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to stat watched file")
		return
	}

	// Truncation or rotation-in-place: start over.
	if info.Size() < t.offset {
		t.logger.Info().Str("path", t.path).Msg("File truncated, restarting from the beginning")
		t.offset = 0
		t.partial.Reset()
	}

	if _, err := file.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to seek watched file")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to read watched file")
		return
	}
	if len(data) == 0 {
		return
	}
	t.offset += int64(len(data))

	t.partial.WriteString(string(data))
	text := t.partial.String()
	t.partial.Reset()

	lines := strings.Split(text, "\n")
	// The final element is an unterminated fragment (often empty); keep
	// it for the next read.
	t.partial.WriteString(lines[len(lines)-1])

	for _, line := range lines[:len(lines)-1] {
		record, ok := t.runner.ParseLine(line)
		if !ok {
			continue
		}
		select {
		case t.recordCh <- record:
		case <-t.ctx.Done():
			return
		}
	}

	if err := t.checkpoint.Save(Position{Path: t.path, Offset: t.offset}); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to save checkpoint")
	}
}
