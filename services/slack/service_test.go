package slack_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/influxdata/rundeckaction/services/slack/slacktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diag struct{}

func (diag) Error(msg string, err error) {}

func TestService_Post(t *testing.T) {
	ts := slacktest.NewServer()
	defer ts.Close()

	s := slack.NewService(slack.Config{Username: "rundeck", IconEmoji: ":robot_face:"}, nil, diag{})
	err := s.Post(context.Background(), ts.URL+"/services/T000/B000/XXX", slack.Message{
		Text:        "disk full on web1",
		Attachments: []slack.Attachment{{Text: "Rundeck job execution: https://rundeck/e/1"}},
	})
	require.NoError(t, err)

	exp := []slacktest.Request{{
		URL: "/services/T000/B000/XXX",
		PostData: slacktest.PostData{
			Text:        "disk full on web1",
			Username:    "rundeck",
			IconEmoji:   ":robot_face:",
			Attachments: []slacktest.Attachment{{Text: "Rundeck job execution: https://rundeck/e/1"}},
		},
	}}
	if got := ts.Requests(); !cmp.Equal(exp, got) {
		t.Errorf("unexpected requests -want/+got\n%s", cmp.Diff(exp, got))
	}
}

func TestService_Post_Rejected(t *testing.T) {
	ts := slacktest.NewServer()
	defer ts.Close()
	ts.Status = http.StatusNotFound
	ts.Response = "no_service"

	s := slack.NewService(slack.NewConfig(), nil, diag{})
	err := s.Post(context.Background(), ts.URL, slack.Message{})
	require.Error(t, err)
	assert.Equal(t, "request failed with status code 404: no_service", err.Error())
}

func TestService_Post_Accepted(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			ts := slacktest.NewServer()
			defer ts.Close()
			ts.Status = status
			ts.Response = ""

			s := slack.NewService(slack.NewConfig(), nil, diag{})
			require.NoError(t, s.Post(context.Background(), ts.URL, slack.Message{Text: "disk full on web1"}))
			assert.Len(t, ts.Requests(), 1)
		})
	}
}

func TestValidateWebhookURL(t *testing.T) {
	assert.NoError(t, slack.ValidateWebhookURL("https://hooks.slack.com/services/T/B/X"))
	assert.Error(t, slack.ValidateWebhookURL("hooks.slack.com/services"))
	assert.Error(t, slack.ValidateWebhookURL("://bad"))
}
