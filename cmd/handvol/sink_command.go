package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
)

// CommandSink runs an external command per volume change, e.g. osascript or amixer.
// Each argv element is a text/template with sprig functions.
type CommandSink struct {
	argv    []*template.Template
	timeout time.Duration
	logger  *slog.Logger
}

// commandVars is the template data for argv rendering.
type commandVars struct {
	Volume   int
	Fraction float64
}

// NewCommandSink parses the argv templates.
func NewCommandSink(cfg CommandConfig, logger *slog.Logger) (*CommandSink, error) {
	if len(cfg.Argv) == 0 {
		return nil, configErrorf("sink.command.argv", "must not be empty")
	}

	s := &CommandSink{
		timeout: sinkTimeout(cfg.TimeoutMS),
		logger:  logger,
	}
	for i, arg := range cfg.Argv {
		tmpl, err := template.New(fmt.Sprintf("argv%d", i)).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(arg)
		if err != nil {
			return nil, configErrorf(fmt.Sprintf("sink.command.argv[%d]", i), "invalid template: %v", err)
		}
		s.argv = append(s.argv, tmpl)
	}
	return s, nil
}

// render expands the argv templates for volume.
func (s *CommandSink) render(volume int) ([]string, error) {
	vars := commandVars{Volume: volume, Fraction: volumeFraction(volume)}

	out := make([]string, 0, len(s.argv))
	var buf bytes.Buffer
	for _, tmpl := range s.argv {
		buf.Reset()
		if err := tmpl.Execute(&buf, vars); err != nil {
			return nil, fmt.Errorf("render %s: %w", tmpl.Name(), err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

// SetVolume renders and runs the command, bounded by the configured timeout.
func (s *CommandSink) SetVolume(ctx context.Context, volume int) error {
	argv, err := s.render(volume)
	if err != nil {
		return &SinkError{Sink: string(SinkCommand), Volume: volume, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &SinkError{Sink: string(SinkCommand), Volume: volume, Err: err}
	}

	s.logger.Debug("volume command ran", "argv", argv, "volume", volume)
	return nil
}

func (s *CommandSink) Close() error { return nil }
