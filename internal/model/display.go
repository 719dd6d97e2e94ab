package model

import "time"

type VideoStatus string

const (
	VideoPlay  VideoStatus = "play"
	VideoPause VideoStatus = "pause"
	VideoStop  VideoStatus = "stop"
)

func (s VideoStatus) Valid() bool {
	return s == VideoPlay || s == VideoPause || s == VideoStop
}

// VideoCommand names the discrete action a VideoTrigger nonce fires.
type VideoCommand string

const (
	VideoNext     VideoCommand = "next"
	VideoPrevious VideoCommand = "previous"
)

func (c VideoCommand) Valid() bool {
	return c == VideoNext || c == VideoPrevious
}

// DisplayConfigID is the primary key of the singleton row.
const DisplayConfigID = 1

type DisplayConfig struct {
	ID             int          `db:"id" json:"id"`
	Columns        int          `db:"columns" json:"columns"`
	CardWidth      int          `db:"card_width" json:"card_width"`
	CardHeight     int          `db:"card_height" json:"card_height"`
	FontScale      float64      `db:"font_scale" json:"font_scale"`
	LayoutSplit    string       `db:"layout_split" json:"layout_split"`
	ThemeColor     string       `db:"theme_color" json:"theme_color"`
	CardBackground string       `db:"card_background" json:"card_background"`
	CardTextColor  string       `db:"card_text_color" json:"card_text_color"`
	CenterName     string       `db:"center_name" json:"center_name"`
	TickerContent  string       `db:"ticker_content" json:"ticker_content"`
	TickerSpeed    int          `db:"ticker_speed" json:"ticker_speed"`
	SpeechSpeed    float64      `db:"speech_speed" json:"speech_speed"`
	VideoStatus    VideoStatus  `db:"video_status" json:"video_status"`
	VideoMuted     bool         `db:"video_muted" json:"video_muted"`
	VideoVolume    int          `db:"video_volume" json:"video_volume"`
	VideoTrigger   string       `db:"video_trigger" json:"video_trigger"`
	VideoCommand   VideoCommand `db:"video_command" json:"video_command"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// DefaultDisplayConfig is the row seeded by the initial migration.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		ID:             DisplayConfigID,
		Columns:        3,
		CardWidth:      30,
		CardHeight:     25,
		FontScale:      1,
		LayoutSplit:    "1/2",
		ThemeColor:     "#1e3a8a",
		CardBackground: "#ffffff",
		CardTextColor:  "#111827",
		TickerSpeed:    30,
		SpeechSpeed:    1,
		VideoStatus:    VideoStop,
		VideoVolume:    50,
	}
}

// DisplayConfigPatch mirrors DisplayConfig with every field optional.
type DisplayConfigPatch struct {
	Columns        *int          `db:"columns" json:"columns,omitempty" validate:"omitempty,min=1,max=12"`
	CardWidth      *int          `db:"card_width" json:"card_width,omitempty" validate:"omitempty,min=1,max=100"`
	CardHeight     *int          `db:"card_height" json:"card_height,omitempty" validate:"omitempty,min=1,max=100"`
	FontScale      *float64      `db:"font_scale" json:"font_scale,omitempty" validate:"omitempty,gt=0,lte=10"`
	LayoutSplit    *string       `db:"layout_split" json:"layout_split,omitempty" validate:"omitempty,layout_split"`
	ThemeColor     *string       `db:"theme_color" json:"theme_color,omitempty" validate:"omitempty,hexcolor"`
	CardBackground *string       `db:"card_background" json:"card_background,omitempty" validate:"omitempty,hexcolor"`
	CardTextColor  *string       `db:"card_text_color" json:"card_text_color,omitempty" validate:"omitempty,hexcolor"`
	CenterName     *string       `db:"center_name" json:"center_name,omitempty" validate:"omitempty,max=120"`
	TickerContent  *string       `db:"ticker_content" json:"ticker_content,omitempty" validate:"omitempty,max=800"`
	TickerSpeed    *int          `db:"ticker_speed" json:"ticker_speed,omitempty" validate:"omitempty,min=0,max=500"`
	SpeechSpeed    *float64      `db:"speech_speed" json:"speech_speed,omitempty" validate:"omitempty,gt=0,lte=3"`
	VideoStatus    *VideoStatus  `db:"video_status" json:"video_status,omitempty" validate:"omitempty,oneof=play pause stop"`
	VideoMuted     *bool         `db:"video_muted" json:"video_muted,omitempty"`
	VideoVolume    *int          `db:"video_volume" json:"video_volume,omitempty" validate:"omitempty,min=0,max=100"`
	VideoTrigger   *string       `db:"video_trigger" json:"video_trigger,omitempty"`
	VideoCommand   *VideoCommand `db:"video_command" json:"video_command,omitempty" validate:"omitempty,oneof=next previous"`
}

// LayoutSplits lists the accepted screen splits between cards and media.
var LayoutSplits = []string{"1/4", "1/3", "1/2", "2/3"}

type PlaybackRequest struct {
	Status *VideoStatus `json:"status" binding:"omitempty,oneof=play pause stop"`
	Muted  *bool        `json:"muted"`
	Volume *int         `json:"volume" binding:"omitempty,min=0,max=100"`
}
