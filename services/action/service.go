// Package action runs a Rundeck job for an alert and reports the execution
// to PagerDuty or Slack.
//
// Without a dedup key the execution link is posted to the action's Slack
// webhook. With one, the incidents carrying that key are listed and a note
// with the link is added to the last incident PagerDuty returned.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/pagerduty"
	"github.com/influxdata/rundeckaction/services/rundeck"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/prometheus/client_golang/prometheus"
)

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic

	TriggeredJob(link string)
	FailedToTriggerJob(err error)

	NotificationMisconfigured()
	SentSlackMessage()
	FailedToSendSlackMessage(err error)

	FoundIncident(incidentID string, matches int)
	FailedToFindIncident(dedupKey string, err error)
	AnnotatedIncident(incidentID string)
	FailedToAnnotateIncident(incidentID string, err error)

	Executed(status Status, reason Reason, d time.Duration)
}

type Service struct {
	clock   clock.Clock
	metrics *metrics
	diag    Diagnostic

	RundeckService interface {
		Run(ctx context.Context, job rundeck.Job, token string, options map[string]interface{}) (*rundeck.Execution, error)
	}
	PagerDutyService interface {
		Incidents(ctx context.Context, apiKey, incidentKey string) ([]pagerduty.Incident, error)
		AddNote(ctx context.Context, apiKey, incidentID, content string) (*pagerduty.Note, error)
	}
	SlackService interface {
		Post(ctx context.Context, webhookURL string, m slack.Message) error
	}
}

func NewService(d Diagnostic) *Service {
	return &Service{
		clock:   clock.New(),
		metrics: newMetrics(),
		diag:    d,
	}
}

// WithClock replaces the clock used to time executions.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) Open() error {
	return nil
}

func (s *Service) Close() error {
	return nil
}

// Collectors returns the prometheus metrics of the service.
func (s *Service) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.metrics.executions, s.metrics.duration}
}

// Execute runs the Rundeck job described by c and reports its execution.
// Every failure is returned as an error Result whose message names actionID.
func (s *Service) Execute(ctx context.Context, c Config, secrets Secrets, p Params, actionID string) Result {
	start := s.clock.Now()
	diag := s.diag.WithContext(keyvalue.KV("action", actionID))

	r := s.execute(ctx, diag, c, secrets, p, actionID)

	d := s.clock.Now().Sub(start)
	s.metrics.observe(r, d)
	diag.Executed(r.Status, r.Reason, d)
	return r
}

func (s *Service) execute(ctx context.Context, diag Diagnostic, c Config, secrets Secrets, p Params, actionID string) Result {
	execution, err := s.RundeckService.Run(ctx, c.job(), secrets.RundeckToken, p.JobParams)
	if err != nil {
		diag.FailedToTriggerJob(err)
		return errorResult(actionID, ReasonJobTriggerFailure,
			fmt.Sprintf("Invalid Response: an error occurred in action \"%s\" calling a job: %s", actionID, err))
	}
	link := execution.Link()
	diag.TriggeredJob(link)
	result := okResult(actionID, execution.Raw)

	if dedupKey := p.dedupKey(); dedupKey != "" {
		if r, ok := s.annotateIncident(ctx, diag, secrets.pagerDutyAPIKey(), dedupKey, link, actionID); !ok {
			return r
		}
		return result
	}

	webhookURL := secrets.webhookURL()
	if webhookURL == "" {
		diag.NotificationMisconfigured()
		return errorResult(actionID, ReasonNotificationMisconfigured,
			actionError(actionID, "Neither of dedupKey nor slackWebhookUrl are provided, failed to send message."))
	}
	m := slack.Message{
		Text:        p.name(),
		Attachments: []slack.Attachment{{Text: executionText(link)}},
	}
	if err := s.SlackService.Post(ctx, webhookURL, m); err != nil {
		diag.FailedToSendSlackMessage(err)
		return errorResult(actionID, ReasonChatDeliveryFailure,
			fmt.Sprintf("an error occurred in action \"%s\" sending a slack message: %s", actionID, err))
	}
	diag.SentSlackMessage()
	return result
}

// annotateIncident adds a note with link to the last incident listed for dedupKey.
// ok is false when r holds the error result to return.
func (s *Service) annotateIncident(ctx context.Context, diag Diagnostic, apiKey, dedupKey, link, actionID string) (r Result, ok bool) {
	incidents, err := s.PagerDutyService.Incidents(ctx, apiKey, dedupKey)
	if err != nil {
		diag.FailedToFindIncident(dedupKey, err)
		return errorResult(actionID, ReasonIncidentLookupFailure, pagerDutyError(actionID, err)), false
	}
	if len(incidents) == 0 {
		diag.FailedToFindIncident(dedupKey, nil)
		return errorResult(actionID, ReasonIncidentNotFound,
			actionError(actionID, fmt.Sprintf("incident list requested by dedupKey, \"%s\", is empty.", dedupKey))), false
	}

	// The last incident in the order PagerDuty returned them.
	incident := incidents[len(incidents)-1]
	diag.FoundIncident(incident.ID, len(incidents))

	if _, err := s.PagerDutyService.AddNote(ctx, apiKey, incident.ID, executionText(link)); err != nil {
		diag.FailedToAnnotateIncident(incident.ID, err)
		return errorResult(actionID, ReasonIncidentAnnotationFailure, pagerDutyError(actionID, err)), false
	}
	diag.AnnotatedIncident(incident.ID)
	return Result{}, true
}

func executionText(link string) string {
	return "Rundeck job execution: " + link
}

func actionError(actionID, msg string) string {
	return fmt.Sprintf("an error occurred in action \"%s\": %s", actionID, msg)
}

func pagerDutyError(actionID string, err error) string {
	return actionError(actionID, "An error occurred while calling PagerDuty API: "+err.Error())
}
