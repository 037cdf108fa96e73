// Package slack posts messages to Slack incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

type Diagnostic interface {
	Error(msg string, err error)
}

type Service struct {
	configValue atomic.Value
	client      *http.Client
	diag        Diagnostic
}

func NewService(c Config, client *http.Client, d Diagnostic) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	s := &Service{
		client: client,
		diag:   d,
	}
	s.configValue.Store(c)
	return s
}

func (s *Service) Open() error {
	return nil
}

func (s *Service) Close() error {
	return nil
}

func (s *Service) config() Config {
	return s.configValue.Load().(Config)
}

func (s *Service) Update(newConfig []interface{}) error {
	if l := len(newConfig); l != 1 {
		return fmt.Errorf("expected only one new config object, got %d", l)
	}
	c, ok := newConfig[0].(Config)
	if !ok {
		return fmt.Errorf("expected config object to be of type %T, got %T", c, newConfig[0])
	}
	s.configValue.Store(c)
	return nil
}

// Attachment is a slack message attachment.
type Attachment struct {
	Fallback string `json:"fallback,omitempty"`
	Color    string `json:"color,omitempty"`
	Text     string `json:"text"`
}

// Message is the payload posted to a webhook.
type Message struct {
	Text        string       `json:"text"`
	Username    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Error is returned when Slack did not accept a message.
type Error struct {
	StatusCode int
	// Response is the body Slack replied with, e.g. "invalid_payload".
	Response string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Response != "":
		return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Response)
	default:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidateWebhookURL reports whether u can be posted to.
func ValidateWebhookURL(u string) error {
	p, err := url.Parse(u)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", u)
	}
	if !p.IsAbs() {
		return errors.Errorf("invalid url %q, must be absolute", u)
	}
	return nil
}

// Post sends m to webhookURL. The configured username and icon are used
// when m does not set them.
func (s *Service) Post(ctx context.Context, webhookURL string, m Message) error {
	c := s.config()
	if m.Username == "" {
		m.Username = c.Username
	}
	if m.IconEmoji == "" {
		m.IconEmoji = c.IconEmoji
	}

	var post bytes.Buffer
	if err := json.NewEncoder(&post).Encode(m); err != nil {
		return &Error{Err: errors.Wrap(err, "failed to encode message")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, &post)
	if err != nil {
		return &Error{Err: errors.Wrap(err, "failed to create POST request")}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			s.diag.Error("failed to read Slack response", err)
		}
		return &Error{
			StatusCode: resp.StatusCode,
			Response:   strings.TrimSpace(string(body)),
		}
	}
	return nil
}
