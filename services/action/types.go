package action

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/influxdata/rundeckaction/services/rundeck"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/pkg/errors"
)

// TypeID is the identifier the action is registered under.
const TypeID = ".rundeck"

// Config describes the Rundeck job an action runs.
type Config struct {
	// Base URL of the Rundeck server.
	URL        string `mapstructure:"url" json:"url"`
	APIVersion int    `mapstructure:"apiVersion" json:"apiVersion"`
	JobID      string `mapstructure:"jobId" json:"jobId"`
	// Extra headers sent to Rundeck.
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
}

func NewConfig() Config {
	return Config{
		APIVersion: rundeck.DefaultAPIVersion,
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", c.URL)
	}
	if !u.IsAbs() {
		return errors.Errorf("invalid url %q, must be absolute", c.URL)
	}
	if c.APIVersion <= 0 {
		return errors.Errorf("invalid apiVersion %d, must be positive", c.APIVersion)
	}
	if c.JobID == "" {
		return errors.New("jobId cannot be empty")
	}
	return nil
}

func (c Config) job() rundeck.Job {
	return rundeck.Job{
		URL:        c.URL,
		APIVersion: c.APIVersion,
		ID:         c.JobID,
		Headers:    c.Headers,
	}
}

// Secrets are the credentials of an action. They are never logged.
type Secrets struct {
	RundeckToken    string  `mapstructure:"rundeckToken"`
	PagerDutyAPIKey *string `mapstructure:"pagerDutyApiKey"`
	SlackWebhookURL *string `mapstructure:"slackWebhookUrl"`
}

func (s Secrets) Validate() error {
	if s.RundeckToken == "" {
		return errors.New("rundeckToken cannot be empty")
	}
	if u := s.webhookURL(); u != "" {
		if err := slack.ValidateWebhookURL(u); err != nil {
			return errors.Wrap(err, "invalid slackWebhookUrl")
		}
	}
	return nil
}

func (s Secrets) pagerDutyAPIKey() string {
	if s.PagerDutyAPIKey == nil {
		return ""
	}
	return *s.PagerDutyAPIKey
}

func (s Secrets) webhookURL() string {
	if s.SlackWebhookURL == nil {
		return ""
	}
	return *s.SlackWebhookURL
}

const redacted = "<redacted>"

func (s Secrets) String() string {
	return fmt.Sprintf("{rundeckToken:%s pagerDutyApiKey:%s slackWebhookUrl:%s}",
		redactedValue(&s.RundeckToken), redactedValue(s.PagerDutyAPIKey), redactedValue(s.SlackWebhookURL))
}

func (s Secrets) GoString() string {
	return "action.Secrets" + s.String()
}

// MarshalJSON only reports which secrets are set.
func (s Secrets) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"rundeckToken":    redactedValue(&s.RundeckToken),
		"pagerDutyApiKey": redactedValue(s.PagerDutyAPIKey),
		"slackWebhookUrl": redactedValue(s.SlackWebhookURL),
	})
}

func redactedValue(v *string) string {
	if v == nil || *v == "" {
		return ""
	}
	return redacted
}

// Params are supplied with every invocation of an action.
type Params struct {
	// DedupKey selects the PagerDuty incident to annotate.
	// Without it a Slack message is sent instead.
	DedupKey *string `mapstructure:"dedupKey" json:"dedupKey,omitempty"`
	// Name is the text of the Slack message.
	Name *string `mapstructure:"name" json:"name,omitempty"`
	// JobParams are sent verbatim as the body of the Rundeck request.
	JobParams map[string]interface{} `mapstructure:"jobParams" json:"jobParams,omitempty"`
}

func (p Params) dedupKey() string {
	if p.DedupKey == nil {
		return ""
	}
	return *p.DedupKey
}

func (p Params) name() string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Reason classifies a failed execution.
type Reason string

const (
	ReasonNone                      Reason = ""
	ReasonJobTriggerFailure         Reason = "job_trigger_failure"
	ReasonNotificationMisconfigured Reason = "notification_misconfigured"
	ReasonChatDeliveryFailure       Reason = "chat_delivery_failure"
	ReasonIncidentLookupFailure     Reason = "incident_lookup_failure"
	ReasonIncidentNotFound          Reason = "incident_not_found"
	ReasonIncidentAnnotationFailure Reason = "incident_annotation_failure"
)

// Result is the outcome of an execution.
// An ok result carries the Rundeck response as Data, an error result carries Message.
type Result struct {
	Status   Status          `json:"status"`
	ActionID string          `json:"actionId"`
	Data     json.RawMessage `json:"data,omitempty"`
	Message  string          `json:"message,omitempty"`
	Reason   Reason          `json:"reason,omitempty"`
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

func okResult(actionID string, data json.RawMessage) Result {
	return Result{
		Status:   StatusOK,
		ActionID: actionID,
		Data:     data,
	}
}

func errorResult(actionID string, reason Reason, message string) Result {
	return Result{
		Status:   StatusError,
		ActionID: actionID,
		Message:  message,
		Reason:   reason,
	}
}
