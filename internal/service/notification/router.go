package notification

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

// Audience identifies who is looking at the notification stream.
type Audience struct {
	Role     model.Role
	ClinicID uuid.UUID
	ScreenID uuid.UUID
	// Label is the FromLabel this audience writes with.
	Label string
}

func ClinicAudience(c *model.Clinic) Audience {
	return Audience{Role: model.RoleClinic, ClinicID: c.ID, Label: c.Name}
}

func AdminAudience() Audience {
	return Audience{Role: model.RoleAdmin, Label: model.AdminLabel}
}

func ScreenAudience(id uuid.UUID) Audience {
	return Audience{Role: model.RoleScreen, ScreenID: id}
}

func AudienceFor(actor model.Actor) Audience {
	return Audience{Role: actor.Role, ClinicID: actor.ClinicID, Label: actor.Label}
}

type Rule string

const (
	RuleEmergency Rule = "emergency"
	RuleDirect    Rule = "direct"
	RuleAdmin     Rule = "admin"
	RuleNameCall  Rule = "name_call"
	RuleOutbound  Rule = "outbound"
)

// Delivery says where a notification lands for one audience.
type Delivery struct {
	Inbound  bool   `json:"inbound"`
	Outbound bool   `json:"outbound"`
	Banner   bool   `json:"banner"`
	Rules    []Rule `json:"rules,omitempty"`
}

func (d Delivery) Matched() bool {
	return d.Inbound || d.Outbound || d.Banner
}

// Route applies the targeting rules, most specific first. Several may
// match at once; an emergency reaches every console whatever its target
// fields say, and name calls reach screens only.
func Route(n *model.Notification, aud Audience) Delivery {
	var d Delivery
	if n == nil || !n.Type.Valid() {
		return d
	}

	switch aud.Role {
	case model.RoleScreen:
		switch n.Type {
		case model.NotificationEmergency:
			d.Banner = true
			d.Rules = append(d.Rules, RuleEmergency)
		case model.NotificationNameCall:
			d.Banner = true
			d.Rules = append(d.Rules, RuleNameCall)
		}
		return d

	case model.RoleClinic, model.RoleAdmin:
		if n.Type == model.NotificationEmergency {
			d.Inbound = true
			d.Rules = append(d.Rules, RuleEmergency)
		} else if n.Type != model.NotificationNameCall {
			if aud.Role == model.RoleClinic && n.ToClinicID != nil && *n.ToClinicID == aud.ClinicID {
				d.Inbound = true
				d.Rules = append(d.Rules, RuleDirect)
			}
			if aud.Role == model.RoleAdmin && n.ToAdmin {
				d.Inbound = true
				d.Rules = append(d.Rules, RuleAdmin)
			}
		}
		if aud.Label != "" && n.FromLabel == aud.Label {
			d.Outbound = true
			d.Rules = append(d.Rules, RuleOutbound)
		}
		d.Banner = d.Inbound
	}
	return d
}
