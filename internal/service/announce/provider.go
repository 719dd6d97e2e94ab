package announce

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrResourceNotFound is returned when a segment has no audio resource.
var ErrResourceNotFound = stderrors.New("audio resource not found")

// Provider plays one segment and returns when playback has finished.
// Play must return promptly once ctx is cancelled.
type Provider interface {
	Play(ctx context.Context, seg Segment) error
}

// FuncProvider adapts a function to Provider.
type FuncProvider func(ctx context.Context, seg Segment) error

func (f FuncProvider) Play(ctx context.Context, seg Segment) error {
	return f(ctx, seg)
}

type ExecConfig struct {
	// Dir holds <id><Ext> files, e.g. ding.mp3, 12.mp3, clinic3.mp3.
	Dir string
	Ext string
	// Command is the player binary; the file path is appended to Args.
	Command string
	Args    []string
}

// ExecProvider runs an external player process per segment. The process
// is killed when the context is cancelled.
type ExecProvider struct {
	cfg ExecConfig
}

func NewExecProvider(cfg ExecConfig) *ExecProvider {
	if cfg.Ext == "" {
		cfg.Ext = ".mp3"
	}
	if cfg.Command == "" {
		cfg.Command = "mpg123"
		cfg.Args = []string{"-q"}
	}
	return &ExecProvider{cfg: cfg}
}

func (p *ExecProvider) Path(seg Segment) string {
	return filepath.Join(p.cfg.Dir, seg.ID+p.cfg.Ext)
}

func (p *ExecProvider) Play(ctx context.Context, seg Segment) error {
	path := p.Path(seg)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrResourceNotFound, path)
		}
		return err
	}

	args := append(append([]string(nil), p.cfg.Args...), path)
	cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player failed for %s: %w", path, err)
	}
	return nil
}
