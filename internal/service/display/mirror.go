package display

import (
	"strings"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/edge"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/patch"
)

const videoTriggerKey = "display:video"

// Surface is whatever renders the display: a media player, a browser
// bridge or a test double.
type Surface interface {
	SetPlayback(status model.VideoStatus, muted bool, volume int)
	Next()
	Previous()
	// Restyle is called after layout, theme or ticker fields changed.
	Restyle(cfg model.DisplayConfig)
}

// Mirror keeps a screen's local copy of the display configuration and
// drives its Surface. It is owned by one session loop.
type Mirror struct {
	cfg      model.DisplayConfig
	surface  Surface
	triggers *edge.Detector
	log      *logger.Logger
}

func NewMirror(surface Surface, triggers *edge.Detector, log *logger.Logger) *Mirror {
	if triggers == nil {
		triggers = edge.NewDetector(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Mirror{cfg: model.DefaultDisplayConfig(), surface: surface, triggers: triggers, log: log}
}

func (m *Mirror) Config() model.DisplayConfig {
	return m.cfg
}

// Load replaces the local copy with a snapshot. The snapshot's trigger is
// primed, not fired: it belongs to a command issued before we looked.
func (m *Mirror) Load(cfg model.DisplayConfig) {
	m.cfg = cfg
	m.triggers.Prime(videoTriggerKey, cfg.VideoTrigger)
	m.surface.SetPlayback(cfg.VideoStatus, cfg.VideoMuted, cfg.VideoVolume)
	m.surface.Restyle(cfg)
}

// Apply merges only the fields present in p and returns their names.
func (m *Mirror) Apply(p *model.DisplayConfigPatch) ([]string, error) {
	next := m.cfg
	applied, err := patch.Apply(&next, p)
	if err != nil {
		return nil, err
	}
	m.cfg = next

	var playback, restyle bool
	for _, name := range applied {
		switch {
		case name == "video_status" || name == "video_muted" || name == "video_volume":
			playback = true
		case strings.HasPrefix(name, "video_"):
		default:
			restyle = true
		}
	}
	if playback {
		m.surface.SetPlayback(m.cfg.VideoStatus, m.cfg.VideoMuted, m.cfg.VideoVolume)
	}
	if p.VideoTrigger != nil && m.triggers.Observe(videoTriggerKey, *p.VideoTrigger) {
		if m.cfg.VideoCommand == model.VideoPrevious {
			m.surface.Previous()
		} else {
			m.surface.Next()
		}
	}
	if restyle {
		m.surface.Restyle(m.cfg)
	}
	return applied, nil
}

// Handle applies one display_config change event.
func (m *Mirror) Handle(ev model.ChangeEvent) error {
	if ev.Collection != model.CollectionDisplayConfig || ev.Type.IsControl() {
		return nil
	}
	p, err := feed.DecodePatch[model.DisplayConfigPatch](ev)
	if err != nil {
		return err
	}
	applied, err := m.Apply(p)
	if err != nil {
		return err
	}
	m.log.Debug("display config applied", "fields", applied)
	return nil
}
