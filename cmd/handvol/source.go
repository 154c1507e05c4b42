package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// errSourceClosed reports that a frame source reached end of input normally.
var errSourceClosed = errors.New("frame source closed")

// maxFrameLine bounds one JSON frame line.
const maxFrameLine = 1 << 20

// readFrames decodes JSON frame lines from r and forwards them to events.
// Malformed lines are logged and skipped. It returns errSourceClosed on EOF.
func readFrames(ctx context.Context, r io.Reader, events chan<- Event, origin string, logger *slog.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := decodeFrameLine(line)
		if err != nil {
			logger.Warn("malformed frame line", "origin", origin, "error", err)
			continue
		}

		// Frames are never dropped: the source waits for the daemon so
		// samples reach the trajectory in order.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case events <- ev:
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: read frames: %w", origin, err)
	}
	return errSourceClosed
}

// runRecognizer starts the recognizer subprocess and streams its stdout frames.
// Stderr lines are logged at debug level. The process exiting ends the source
// with an error.
func runRecognizer(ctx context.Context, argv []string, events chan<- Event, logger *slog.Logger) error {
	if len(argv) == 0 {
		return errors.New("recognizer command is empty")
	}

	logger.Info("starting recognizer", "argv", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recognizer stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("recognizer stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			logger.Debug("recognizer stderr", "line", sc.Text())
		}
	}()

	readErr := readFrames(ctx, stdout, events, "recognizer", logger)

	if readErr != nil && !errors.Is(readErr, errSourceClosed) {
		_ = cmd.Process.Kill()
	}

	// Drain stderr before Wait closes the pipes.
	<-stderrDone
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil && !errors.Is(readErr, errSourceClosed) {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("recognizer process failed: %w", waitErr)
	}
	return errors.New("recognizer process exited")
}
