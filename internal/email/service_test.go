package email

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

type captureSender struct {
	sent []*gomail.Message
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return nil
}

func TestSendEmergency(t *testing.T) {
	sender := &captureSender{}
	svc := NewServiceWithSender(Config{From: "queue@clinic.test", Recipients: []string{"ops@clinic.test"}}, sender)

	err := svc.SendEmergency(context.Background(), &model.Notification{
		FromLabel: "Dental",
		Type:      model.NotificationEmergency,
		Message:   "patient collapsed",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	assert.Equal(t, []string{"Emergency from Dental"}, sender.sent[0].GetHeader("Subject"))
	var buf bytes.Buffer
	_, err = sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "patient collapsed")
}

func TestNewService_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, NewService(Config{}))
}
