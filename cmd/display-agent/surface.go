package main

import (
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
)

// logSurface records what the renderer is told to do. The renderer itself
// reads frames from stdout.
type logSurface struct {
	log *logger.Logger
}

func newLogSurface(log *logger.Logger) *logSurface {
	return &logSurface{log: log.With("component", "surface")}
}

func (s *logSurface) SetPlayback(status model.VideoStatus, muted bool, volume int) {
	s.log.Info("playback", "status", string(status), "muted", muted, "volume", volume)
}

func (s *logSurface) Next() { s.log.Info("video next") }

func (s *logSurface) Previous() { s.log.Info("video previous") }

func (s *logSurface) Restyle(cfg model.DisplayConfig) {
	s.log.Debug("restyle", "layout", cfg.LayoutSplit, "theme", cfg.ThemeColor)
}
