// Package remote mirrors a queue server's change feed into a local hub.
// Display agents run on screen hardware and talk to the server over HTTP.
package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
)

const (
	feedPath          = "/api/v1/feed"
	clinicsPath       = "/api/v1/clinics"
	displayConfigPath = "/api/v1/display-config"
	doctorsPath       = "/api/v1/doctors"
	screenLoginPath   = "/api/v1/auth/screen"

	eventChange = "change"
)

type Config struct {
	BaseURL string
	Token   string
	// ScreenID and Secret, when set, let the client log in and log in
	// again whenever the server rejects the token.
	ScreenID   uuid.UUID
	Secret     string
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
}

// Client streams /feed into hub and serves snapshots over plain requests.
type Client struct {
	http   *resty.Client
	stream *resty.Client
	hub    *feed.Hub
	log    *logger.Logger
	cfg    Config
}

func NewClient(cfg Config, hub *feed.Hub, log *logger.Logger) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetAuthToken(cfg.Token)
	// The stream is long-lived; it must not inherit the request timeout.
	streamClient := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "text/event-stream")

	return &Client{
		http:   httpClient,
		stream: streamClient,
		hub:    hub,
		log:    log.With("component", "remote_feed"),
		cfg:    cfg,
	}
}

// Subscribe opens a subscription on the local mirror.
func (c *Client) Subscribe(collection model.Collection, match feed.Predicate) (*feed.Subscription, error) {
	return c.hub.Subscribe(collection, match)
}

// Run keeps the stream connected until ctx is done. Every reconnect after
// the first triggers a local resync, since events may have been missed.
func (c *Client) Run(ctx context.Context) error {
	delay := c.cfg.RetryDelay
	connected := false

	for {
		err := c.consume(ctx, func() {
			if connected {
				c.hub.Resync(feed.ResyncReconnect)
			}
			connected = true
			delay = c.cfg.RetryDelay
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("feed stream lost", "error", errString(err), "retry_in", delay.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
}

func (c *Client) consume(ctx context.Context, onConnect func()) error {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(feedPath)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() == http.StatusUnauthorized && c.cfg.Secret != "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		return fmt.Errorf("open feed: token rejected, logged in again")
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("open feed: unexpected status %d", resp.StatusCode())
	}
	onConnect()
	return c.read(body)
}

// read parses the text/event-stream framing and republishes change events.
func (c *Client) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.dispatch(event, data.String())
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func (c *Client) dispatch(event, data string) {
	if event != "" && event != eventChange {
		return
	}
	var ev model.ChangeEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		c.log.Error(err, "dropping undecodable feed event")
		return
	}
	// The local hub numbers events itself.
	ev.Seq = 0
	c.hub.Publish(ev)
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func get[T any](ctx context.Context, c *resty.Client, path string) (T, error) {
	var out envelope[T]
	resp, err := c.R().SetContext(ctx).SetResult(&out).SetError(&out).Get(path)
	if err != nil {
		return out.Data, fmt.Errorf("get %s: %w", path, err)
	}
	if resp.IsError() || !out.Success {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		return out.Data, fmt.Errorf("get %s: %s", path, msg)
	}
	return out.Data, nil
}

// Login exchanges the screen credentials for a token and uses it for every
// later request.
func (c *Client) Login(ctx context.Context) error {
	var out envelope[model.TokenResponse]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.ScreenLoginRequest{ScreenID: c.cfg.ScreenID, Secret: c.cfg.Secret}).
		SetResult(&out).
		SetError(&out).
		Post(screenLoginPath)
	if err != nil {
		return fmt.Errorf("screen login: %w", err)
	}
	if resp.IsError() || !out.Success {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		return fmt.Errorf("screen login: %s", msg)
	}
	c.http.SetAuthToken(out.Data.AccessToken)
	c.stream.SetAuthToken(out.Data.AccessToken)
	c.log.Info("logged in", "screen_id", c.cfg.ScreenID.String())
	return nil
}

func (c *Client) Clinics(ctx context.Context) ([]*model.Clinic, error) {
	return get[[]*model.Clinic](ctx, c.http, clinicsPath)
}

func (c *Client) DisplayConfig(ctx context.Context) (*model.DisplayConfig, error) {
	return get[*model.DisplayConfig](ctx, c.http, displayConfigPath)
}

func (c *Client) Doctors(ctx context.Context) ([]*model.Doctor, error) {
	return get[[]*model.Doctor](ctx, c.http, doctorsPath)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
