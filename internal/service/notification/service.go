package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-queue/internal/email"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

const escalationTimeout = 30 * time.Second

type Servicer interface {
	Send(ctx context.Context, actor model.Actor, req *model.SendNotificationRequest) (*model.Notification, error)
	Inbox(ctx context.Context, aud Audience) (*Inbox, error)
}

type Config struct {
	LogSize int
}

type Service struct {
	repo    repository.NotificationRepository
	clinics repository.ClinicRepository
	outbox  repository.OutboxRepository
	mailer  email.Service
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewService(
	repo repository.NotificationRepository,
	clinics repository.ClinicRepository,
	outbox repository.OutboxRepository,
	mailer email.Service,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if cfg.LogSize <= 0 {
		cfg.LogSize = DefaultLogSize
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Service{
		repo:    repo,
		clinics: clinics,
		outbox:  outbox,
		mailer:  mailer,
		cfg:     cfg,
		log:     log.With("service", "notification"),
		metrics: m,
	}
}

// Send validates targeting, then appends the notification. Invalid
// targeting is rejected before anything is written.
func (s *Service) Send(ctx context.Context, actor model.Actor, req *model.SendNotificationRequest) (*model.Notification, error) {
	if actor.Role != model.RoleClinic && actor.Role != model.RoleAdmin {
		return nil, errors.Forbidden("only consoles can send notifications")
	}

	n := &model.Notification{
		FromLabel:     actor.Label,
		ToClinicID:    req.ToClinicID,
		ToAdmin:       req.ToAdmin,
		Type:          req.Type,
		Message:       strings.TrimSpace(req.Message),
		PatientNumber: req.PatientNumber,
	}
	if err := n.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if err := s.prepare(ctx, actor, n); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Error(err, "failed to send notification", "type", string(n.Type), "from", n.FromLabel)
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.Unavailable("failed to send notification", err)
	}
	s.metrics.Notifications.WithLabelValues(string(n.Type)).Inc()
	s.log.Info("notification sent", "id", n.ID.String(), "type", string(n.Type), "from", n.FromLabel)

	s.record(ctx, n)
	if n.Type == model.NotificationEmergency {
		s.escalate(n)
	}
	return n, nil
}

func (s *Service) prepare(ctx context.Context, actor model.Actor, n *model.Notification) error {
	if n.ToClinicID != nil {
		if actor.Role == model.RoleClinic && *n.ToClinicID == actor.ClinicID {
			return errors.BadRequest("cannot send to your own clinic", nil)
		}
		if _, err := s.clinics.Get(ctx, *n.ToClinicID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.BadRequest("destination clinic does not exist", err)
			}
			return err
		}
	}

	switch n.Type {
	case model.NotificationEmergency:
		n.ToAdmin = true
		if n.Message == "" {
			n.Message = fmt.Sprintf("Emergency at %s", n.FromLabel)
		}

	case model.NotificationTransfer:
		if n.ToClinicID == nil {
			return errors.BadRequest("transfer requires a destination clinic", nil)
		}
		if n.PatientNumber == nil {
			if actor.Role != model.RoleClinic {
				return errors.BadRequest("transfer requires a patient number", nil)
			}
			own, err := s.clinics.Get(ctx, actor.ClinicID)
			if err != nil {
				return err
			}
			current := own.CurrentNumber
			n.PatientNumber = &current
		}
		if n.Message == "" {
			n.Message = fmt.Sprintf("transfer patient (%d) from %s", *n.PatientNumber, n.FromLabel)
		}

	case model.NotificationNameCall:
		if n.Message == "" {
			return errors.BadRequest("name call requires the patient name", nil)
		}

	case model.NotificationNormal:
		if n.ToClinicID == nil && !n.ToAdmin {
			return errors.BadRequest("select a destination clinic or the admin", nil)
		}
		if n.Message == "" {
			return errors.BadRequest("message is required", nil)
		}
	}
	return nil
}

// Inbox loads the login backfill for a console. Screens keep no logs.
func (s *Service) Inbox(ctx context.Context, aud Audience) (*Inbox, error) {
	inbox := NewInbox(aud, s.cfg.LogSize)

	var inbound, outbound []*model.Notification
	var err error
	switch aud.Role {
	case model.RoleClinic:
		inbound, err = s.repo.ListInbound(ctx, aud.ClinicID, s.cfg.LogSize)
	case model.RoleAdmin:
		inbound, err = s.repo.ListAdmin(ctx, s.cfg.LogSize)
	default:
		return inbox, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound log: %w", err)
	}
	if outbound, err = s.repo.ListOutbound(ctx, aud.Label, s.cfg.LogSize); err != nil {
		return nil, fmt.Errorf("failed to load outbound log: %w", err)
	}

	inbox.Load(inbound, outbound)
	return inbox, nil
}

func (s *Service) record(ctx context.Context, n *model.Notification) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.log.Error(err, "failed to encode notification event")
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{EventType: model.EventNotificationCreated, Payload: payload}); err != nil {
		s.log.Error(err, "failed to record notification event", "id", n.ID.String())
	}
}

// escalate mails the emergency in the background; the request that raised
// it must not wait on SMTP.
func (s *Service) escalate(n *model.Notification) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
		defer cancel()
		if err := s.mailer.SendEmergency(ctx, n); err != nil {
			s.log.Error(err, "emergency escalation failed", "id", n.ID.String())
		}
	}()
}
