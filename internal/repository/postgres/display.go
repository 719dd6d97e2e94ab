package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

const displayConfigColumns = `id, columns, card_width, card_height, font_scale, layout_split,
	theme_color, card_background, card_text_color, center_name, ticker_content, ticker_speed,
	speech_speed, video_status, video_muted, video_volume, video_trigger, video_command, updated_at`

type displayConfigRepository struct {
	BaseRepository
}

func NewDisplayConfigRepository(base BaseRepository) repository.DisplayConfigRepository {
	return &displayConfigRepository{base}
}

func (r *displayConfigRepository) Get(ctx context.Context) (*model.DisplayConfig, error) {
	query := `SELECT ` + displayConfigColumns + ` FROM display_config WHERE id = $1`

	var cfg model.DisplayConfig
	if err := r.db.GetContext(ctx, &cfg, query, model.DisplayConfigID); err != nil {
		if nf := notFound("display config", err); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get display config: %w", err)
	}
	return &cfg, nil
}

// Update writes only the columns present in the patch, so concurrent
// updates of disjoint fields do not clobber each other.
func (r *displayConfigRepository) Update(ctx context.Context, p *model.DisplayConfigPatch) (*model.DisplayConfig, error) {
	set, args := setClause(p)
	if set != "" {
		set += ", "
	}
	query := fmt.Sprintf(`UPDATE display_config SET %supdated_at = NOW() WHERE id = $%d RETURNING %s`,
		set, len(args)+1, displayConfigColumns)
	args = append(args, model.DisplayConfigID)

	var cfg model.DisplayConfig
	if err := r.db.GetContext(ctx, &cfg, query, args...); err != nil {
		if nf := notFound("display config", err); nf != nil {
			return nil, nf
		}
		return nil, errors.Unavailable("failed to update display config", err)
	}
	return &cfg, nil
}
