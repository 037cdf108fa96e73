package action_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/influxdata/rundeckaction/services/pagerduty"
	"github.com/influxdata/rundeckaction/services/pagerduty/pagerdutytest"
	"github.com/influxdata/rundeckaction/services/rundeck"
	"github.com/influxdata/rundeckaction/services/rundeck/rundecktest"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/influxdata/rundeckaction/services/slack/slacktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	actionID      = "e3f1c0de-rundeck-action"
	executionBody = `{"id":7,"href":"https://rundeck.example.com/api/24/execution/7","permalink":"https://rundeck.example.com/project/ops/execution/show/7","status":"running"}`
	executionLink = "https://rundeck.example.com/project/ops/execution/show/7"
)

type diag struct {
	ctx    []keyvalue.T
	events *[]string
}

func newDiag() *diag {
	return &diag{events: &[]string{}}
}

func (d *diag) WithContext(ctx ...keyvalue.T) action.Diagnostic {
	return &diag{ctx: append(d.ctx, ctx...), events: d.events}
}

func (d *diag) add(e string) {
	*d.events = append(*d.events, e)
}

func (d *diag) TriggeredJob(string) {
	d.add("triggered")
}

func (d *diag) FailedToTriggerJob(error) {
	d.add("trigger-failed")
}

func (d *diag) NotificationMisconfigured() {
	d.add("misconfigured")
}

func (d *diag) SentSlackMessage() {
	d.add("slack-sent")
}

func (d *diag) FailedToSendSlackMessage(error) {
	d.add("slack-failed")
}

func (d *diag) FoundIncident(string, int) {
	d.add("incident-found")
}

func (d *diag) FailedToFindIncident(string, error) {
	d.add("incident-missing")
}

func (d *diag) AnnotatedIncident(string) {
	d.add("annotated")
}

func (d *diag) FailedToAnnotateIncident(string, error) {
	d.add("annotate-failed")
}

func (d *diag) Executed(action.Status, action.Reason, time.Duration) {
	d.add("executed")
}

type fixture struct {
	rundeck   *rundecktest.Server
	pagerduty *pagerdutytest.Server
	slack     *slacktest.Server
	diag      *diag
	service   *action.Service
}

func newFixture(t *testing.T, rundeckStatus int, rundeckResponse string, incidents ...pagerdutytest.Incident) *fixture {
	f := &fixture{
		rundeck:   rundecktest.NewServer(rundeckStatus, rundeckResponse),
		pagerduty: pagerdutytest.NewServer(incidents...),
		slack:     slacktest.NewServer(),
		diag:      newDiag(),
	}
	t.Cleanup(func() {
		f.rundeck.Close()
		f.pagerduty.Close()
		f.slack.Close()
	})

	pc := pagerduty.NewConfig()
	pc.URL = f.pagerduty.URL
	f.service = action.NewService(f.diag)
	f.service.RundeckService = rundeck.NewService(rundeck.NewConfig(), nil, noopErrorDiag{})
	f.service.PagerDutyService = pagerduty.NewService(pc, nil, noopErrorDiag{})
	f.service.SlackService = slack.NewService(slack.NewConfig(), nil, noopErrorDiag{})
	return f
}

type noopErrorDiag struct{}

func (noopErrorDiag) Error(string, error) {}

func (f *fixture) config() action.Config {
	c := action.NewConfig()
	c.URL = f.rundeck.URL
	c.JobID = "restart-web"
	return c
}

func (f *fixture) secrets(pagerDutyKey, webhook bool) action.Secrets {
	s := action.Secrets{RundeckToken: "rd-token"}
	if pagerDutyKey {
		s.PagerDutyAPIKey = strPtr("pd-key")
	}
	if webhook {
		s.SlackWebhookURL = strPtr(f.slack.URL + "/services/T/B/X")
	}
	return s
}

func strPtr(s string) *string {
	return &s
}

func TestExecute_JobFailure(t *testing.T) {
	f := newFixture(t, http.StatusForbidden, `{"error":true,"errorCode":"api.error.item.unauthorized","message":"Not authorized for action \"Run\" for Job ID restart-web"}`)

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, true), action.Params{DedupKey: strPtr("disk-full")}, actionID)
	require.False(t, r.OK())
	assert.Equal(t, action.StatusError, r.Status)
	assert.Equal(t, action.ReasonJobTriggerFailure, r.Reason)
	assert.Equal(t, `Invalid Response: an error occurred in action "e3f1c0de-rundeck-action" calling a job: Not authorized for action "Run" for Job ID restart-web`, r.Message)
	assert.Nil(t, r.Data)

	assert.Empty(t, f.pagerduty.Requests())
	assert.Empty(t, f.slack.Requests())
	assert.Equal(t, []string{"trigger-failed", "executed"}, *f.diag.events)
}

func TestExecute_JobTransportFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	c := f.config()
	f.rundeck.Close()

	r := f.service.Execute(context.Background(), c, f.secrets(false, true), action.Params{}, actionID)
	require.False(t, r.OK())
	assert.Contains(t, r.Message, "calling a job")
	assert.Contains(t, r.Message, actionID)
	assert.Empty(t, f.slack.Requests())
}

func TestExecute_NoDedupKeyNoWebhook(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, false), action.Params{}, actionID)
	require.False(t, r.OK())
	assert.Equal(t, action.ReasonNotificationMisconfigured, r.Reason)
	assert.Contains(t, r.Message, actionID)
	assert.Contains(t, r.Message, "dedupKey")
	assert.Contains(t, r.Message, "slackWebhookUrl")

	assert.Len(t, f.rundeck.Requests(), 1)
	assert.Empty(t, f.pagerduty.Requests())
	assert.Empty(t, f.slack.Requests())
}

func TestExecute_EmptyDedupKeyIsAbsent(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, true), action.Params{DedupKey: strPtr("")}, actionID)
	require.True(t, r.OK(), r.Message)
	assert.Empty(t, f.pagerduty.Requests())
	assert.Len(t, f.slack.Requests(), 1)
}

func TestExecute_Slack(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	p := action.Params{
		Name:      strPtr("High CPU on web1"),
		JobParams: map[string]interface{}{"options": map[string]interface{}{"host": "web1"}},
	}

	r := f.service.Execute(context.Background(), f.config(), f.secrets(false, true), p, actionID)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, actionID, r.ActionID)
	assert.JSONEq(t, executionBody, string(r.Data))
	assert.Empty(t, r.Message)

	rreqs := f.rundeck.Requests()
	require.Len(t, rreqs, 1)
	assert.Equal(t, "/api/24/job/restart-web/executions", rreqs[0].Path)
	assert.Equal(t, "rd-token", rreqs[0].Headers.Get(rundeck.AuthTokenHeader))
	assert.Equal(t, p.JobParams, rreqs[0].Options)

	sreqs := f.slack.Requests()
	require.Len(t, sreqs, 1)
	assert.Equal(t, "High CPU on web1", sreqs[0].PostData.Text)
	require.Len(t, sreqs[0].PostData.Attachments, 1)
	assert.Contains(t, sreqs[0].PostData.Attachments[0].Text, executionLink)
	assert.Empty(t, f.pagerduty.Requests())
	assert.Equal(t, []string{"triggered", "slack-sent", "executed"}, *f.diag.events)
}

func TestExecute_SlackNoContent(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	f.slack.Status = http.StatusNoContent
	f.slack.Response = ""

	r := f.service.Execute(context.Background(), f.config(), f.secrets(false, true), action.Params{}, actionID)
	require.True(t, r.OK(), r.Message)
	assert.JSONEq(t, executionBody, string(r.Data))
	assert.Len(t, f.slack.Requests(), 1)
}

func TestExecute_SlackFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	f.slack.Status = http.StatusBadRequest
	f.slack.Response = "invalid_payload"

	r := f.service.Execute(context.Background(), f.config(), f.secrets(false, true), action.Params{}, actionID)
	require.False(t, r.OK())
	assert.Equal(t, action.ReasonChatDeliveryFailure, r.Reason)
	assert.Contains(t, r.Message, actionID)
	assert.Contains(t, r.Message, "invalid_payload")
}

func TestExecute_IncidentNotFound(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, true), action.Params{DedupKey: strPtr("disk-full")}, actionID)
	require.False(t, r.OK())
	assert.Equal(t, action.ReasonIncidentNotFound, r.Reason)
	assert.Equal(t, `an error occurred in action "e3f1c0de-rundeck-action": incident list requested by dedupKey, "disk-full", is empty.`, r.Message)

	reqs := f.pagerduty.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Empty(t, f.slack.Requests())
}

func TestExecute_IncidentAnnotated(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody,
		pagerdutytest.Incident{ID: "PFIRST", IncidentKey: "disk-full"},
		pagerdutytest.Incident{ID: "PLAST", IncidentKey: "disk-full"},
	)

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, false), action.Params{DedupKey: strPtr("disk-full")}, actionID)
	require.True(t, r.OK(), r.Message)
	assert.JSONEq(t, executionBody, string(r.Data))

	reqs := f.pagerduty.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"disk-full"}, reqs[0].Query["incident_key"])
	assert.Equal(t, []string{"all"}, reqs[0].Query["date_range"])
	assert.Equal(t, "Token token=pd-key", reqs[0].Authorization)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "/incidents/PLAST/notes", reqs[1].Path)
	assert.Equal(t, "Token token=pd-key", reqs[1].Authorization)
	assert.Contains(t, reqs[1].PostData.Note.Content, executionLink)
	assert.Empty(t, f.slack.Requests())
	assert.Equal(t, []string{"triggered", "incident-found", "annotated", "executed"}, *f.diag.events)
}

func TestExecute_IncidentErrors(t *testing.T) {
	cases := []struct {
		name    string
		prime   func(*pagerdutytest.Server)
		reason  action.Reason
		message string
		calls   int
	}{
		{
			name: "lookup",
			prime: func(s *pagerdutytest.Server) {
				s.ListStatus = http.StatusUnauthorized
				s.ListError = "Authentication failed"
			},
			reason:  action.ReasonIncidentLookupFailure,
			message: `an error occurred in action "e3f1c0de-rundeck-action": An error occurred while calling PagerDuty API: 401 Authentication failed`,
			calls:   1,
		},
		{
			name: "annotation",
			prime: func(s *pagerdutytest.Server) {
				s.NoteStatus = http.StatusBadRequest
				s.NoteError = "Requester User Not Found"
			},
			reason:  action.ReasonIncidentAnnotationFailure,
			message: `an error occurred in action "e3f1c0de-rundeck-action": An error occurred while calling PagerDuty API: 400 Requester User Not Found`,
			calls:   2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, executionBody, pagerdutytest.Incident{ID: "P1"})
			tc.prime(f.pagerduty)

			r := f.service.Execute(context.Background(), f.config(), f.secrets(true, true), action.Params{DedupKey: strPtr("k")}, actionID)
			require.False(t, r.OK())
			assert.Equal(t, tc.reason, r.Reason)
			assert.Equal(t, tc.message, r.Message)
			assert.Len(t, f.pagerduty.Requests(), tc.calls)
			assert.Empty(t, f.slack.Requests())
		})
	}
}

func TestExecute_MissingPermalink(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{"id":8}`, pagerdutytest.Incident{ID: "P1"})

	r := f.service.Execute(context.Background(), f.config(), f.secrets(true, false), action.Params{DedupKey: strPtr("k")}, actionID)
	require.True(t, r.OK(), r.Message)
	reqs := f.pagerduty.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, strings.HasSuffix(reqs[1].PostData.Note.Content, rundeck.NoLink))
}

func TestExecute_Metrics(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	mock := clock.NewMock()
	f.service.WithClock(mock)

	f.service.Execute(context.Background(), f.config(), f.secrets(false, true), action.Params{}, "a1")
	f.service.Execute(context.Background(), f.config(), f.secrets(false, false), action.Params{}, "a2")

	collectors := f.service.Collectors()
	require.Len(t, collectors, 2)
	assert.Equal(t, 2, testutil.CollectAndCount(collectors[0]))
	assert.Equal(t, 1, testutil.CollectAndCount(collectors[1]))
}

func TestExecute_ContextCarriesActionID(t *testing.T) {
	f := newFixture(t, http.StatusOK, executionBody)
	var got []keyvalue.T
	f.service = action.NewService(&capturingDiag{diag: f.diag, ctx: &got})
	f.service.RundeckService = rundeck.NewService(rundeck.NewConfig(), nil, noopErrorDiag{})
	f.service.SlackService = slack.NewService(slack.NewConfig(), nil, noopErrorDiag{})

	f.service.Execute(context.Background(), f.config(), f.secrets(false, true), action.Params{}, actionID)
	assert.Equal(t, []keyvalue.T{keyvalue.KV("action", actionID)}, got)
}

type capturingDiag struct {
	*diag
	ctx *[]keyvalue.T
}

func (d *capturingDiag) WithContext(ctx ...keyvalue.T) action.Diagnostic {
	*d.ctx = append(*d.ctx, ctx...)
	return d.diag.WithContext(ctx...)
}
