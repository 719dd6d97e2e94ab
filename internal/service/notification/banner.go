package notification

import (
	"time"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

type BannerKind string

const (
	BannerNormal    BannerKind = "normal"
	BannerTransfer  BannerKind = "transfer"
	BannerCall      BannerKind = "call"
	BannerNameCall  BannerKind = "name_call"
	BannerEmergency BannerKind = "emergency"
)

// Lifetime is fixed per kind. Urgent banners stay longest.
func (k BannerKind) Lifetime() time.Duration {
	switch k {
	case BannerEmergency:
		return 15 * time.Second
	case BannerNameCall:
		return 12 * time.Second
	case BannerCall, BannerTransfer:
		return 8 * time.Second
	default:
		return 6 * time.Second
	}
}

func BannerKindFor(t model.NotificationType) BannerKind {
	switch t {
	case model.NotificationEmergency:
		return BannerEmergency
	case model.NotificationNameCall:
		return BannerNameCall
	case model.NotificationTransfer:
		return BannerTransfer
	default:
		return BannerNormal
	}
}

type Banner struct {
	Generation   uint64              `json:"generation"`
	Kind         BannerKind          `json:"kind"`
	Notification *model.Notification `json:"notification,omitempty"`
	Call         *model.CallEvent    `json:"call,omitempty"`
	Until        time.Time           `json:"until"`
}

// BannerSlot holds at most one banner. Showing a new banner replaces the
// current one immediately; nothing is queued. It belongs to one session
// loop and is not safe for concurrent use.
type BannerSlot struct {
	current *Banner
	gen     uint64
	timer   *time.Timer
	now     func() time.Time
}

func NewBannerSlot() *BannerSlot {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &BannerSlot{timer: t, now: time.Now}
}

func (b *BannerSlot) ShowNotification(n *model.Notification) Banner {
	return b.show(Banner{Kind: BannerKindFor(n.Type), Notification: n})
}

func (b *BannerSlot) ShowCall(c model.CallEvent) Banner {
	return b.show(Banner{Kind: BannerCall, Call: &c})
}

func (b *BannerSlot) show(banner Banner) Banner {
	b.gen++
	banner.Generation = b.gen
	life := banner.Kind.Lifetime()
	banner.Until = b.now().Add(life)
	b.current = &banner
	b.reset(life)
	return banner
}

// C fires when the current banner's lifetime is over.
func (b *BannerSlot) C() <-chan time.Time {
	return b.timer.C
}

// Expire clears the slot after C fired and returns the banner removed.
func (b *BannerSlot) Expire() (Banner, bool) {
	if b.current == nil {
		return Banner{}, false
	}
	out := *b.current
	b.current = nil
	return out, true
}

func (b *BannerSlot) Current() (Banner, bool) {
	if b.current == nil {
		return Banner{}, false
	}
	return *b.current, true
}

func (b *BannerSlot) Stop() {
	b.timer.Stop()
}

func (b *BannerSlot) reset(d time.Duration) {
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.timer.Reset(d)
}
