package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/monify-labs/telemon/pkg/models"
)

// JSONLines writes one JSON-encoded frame per line. Unavailable readings
// are encoded as null.
type JSONLines struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONLines creates a JSON lines sink writing to out
func NewJSONLines(out io.Writer) *JSONLines {
	return &JSONLines{out: out}
}

// Present writes frame as a single line
func (j *JSONLines) Present(_ context.Context, frame *models.Frame) error {
	if frame == nil {
		return nil
	}

	// Marshal to JSON
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.out.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close is a no-op; the writer belongs to the caller
func (j *JSONLines) Close() error {
	return nil
}
