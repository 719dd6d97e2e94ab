package notification

import (
	"github.com/jwalitptl/clinic-queue/internal/model"
)

const DefaultLogSize = 15

// Inbox keeps the two bounded console logs, newest first.
type Inbox struct {
	size     int
	aud      Audience
	inbound  []*model.Notification
	outbound []*model.Notification
}

func NewInbox(aud Audience, size int) *Inbox {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Inbox{size: size, aud: aud}
}

// Load replaces both logs with a backfill. Items are routed again so the
// logs hold exactly what live delivery would have added.
func (i *Inbox) Load(inbound, outbound []*model.Notification) {
	i.inbound = i.inbound[:0]
	i.outbound = i.outbound[:0]
	for _, n := range inbound {
		if Route(n, i.aud).Inbound && len(i.inbound) < i.size {
			i.inbound = append(i.inbound, n)
		}
	}
	for _, n := range outbound {
		if Route(n, i.aud).Outbound && len(i.outbound) < i.size {
			i.outbound = append(i.outbound, n)
		}
	}
}

// Add routes n and records it. A notification already present is ignored,
// so duplicate deliveries neither grow the logs nor re-trigger a banner.
func (i *Inbox) Add(n *model.Notification) Delivery {
	d := Route(n, i.aud)
	if d.Inbound {
		var added bool
		i.inbound, added = push(i.inbound, n, i.size)
		if !added {
			d.Inbound = false
			d.Banner = false
		}
	}
	if d.Outbound {
		var added bool
		i.outbound, added = push(i.outbound, n, i.size)
		d.Outbound = added
	}
	return d
}

func (i *Inbox) Inbound() []*model.Notification {
	return append([]*model.Notification(nil), i.inbound...)
}

func (i *Inbox) Outbound() []*model.Notification {
	return append([]*model.Notification(nil), i.outbound...)
}

func push(log []*model.Notification, n *model.Notification, size int) ([]*model.Notification, bool) {
	for _, existing := range log {
		if existing.ID == n.ID {
			return log, false
		}
	}
	log = append([]*model.Notification{n}, log...)
	if len(log) > size {
		log = log[:size]
	}
	return log, true
}
