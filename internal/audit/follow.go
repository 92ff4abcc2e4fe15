package audit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
)

// Follow streams a transcript file to w from its beginning, waiting for new
// lines until the run's outcome line arrives or ctx is done.
func Follow(ctx context.Context, path string, w io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		MustExist: true,
		// Polling works the same on every platform and on network shares.
		Poll:   true,
		Logger: tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow transcript: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read transcript line: %w", line.Err)
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
			if strings.HasPrefix(line.Text, OutcomePrefix) {
				return nil
			}
		}
	}
}
