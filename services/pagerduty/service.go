// Package pagerduty finds and annotates incidents through the PagerDuty REST API.
package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

const acceptHeader = "application/vnd.pagerduty+json;version=2"

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
	if err := c.Validate(); err != nil {
		return err
	}
	s.configValue.Store(c)
	return nil
}

// Incident is the subset of a PagerDuty incident used to annotate it.
type Incident struct {
	ID             string `json:"id"`
	IncidentNumber int    `json:"incident_number"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	IncidentKey    string `json:"incident_key"`
	HTMLURL        string `json:"html_url"`
}

// Note is a note attached to an incident.
type Note struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

// Error is returned when a call to the PagerDuty API failed.
// Message holds the error message PagerDuty reported if it sent one,
// Errors its detailed reasons.
type Error struct {
	StatusCode int
	Message    string
	Errors     []string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Incidents lists the incidents with the given incident (dedup) key over all dates.
// Incidents are returned in the order PagerDuty lists them.
func (s *Service) Incidents(ctx context.Context, apiKey, incidentKey string) ([]Incident, error) {
	q := url.Values{}
	q.Set("date_range", "all")
	q.Set("incident_key", incidentKey)

	var r struct {
		Incidents []Incident `json:"incidents"`
	}
	if err := s.do(ctx, http.MethodGet, "/incidents?"+q.Encode(), apiKey, nil, &r); err != nil {
		return nil, err
	}
	return r.Incidents, nil
}

// AddNote creates a note with content on the incident with the given id.
func (s *Service) AddNote(ctx context.Context, apiKey, incidentID, content string) (*Note, error) {
	type notePayload struct {
		Note Note `json:"note"`
	}
	var post bytes.Buffer
	if err := json.NewEncoder(&post).Encode(notePayload{Note: Note{Content: content}}); err != nil {
		return nil, &Error{Err: errors.Wrap(err, "failed to encode note")}
	}

	var r notePayload
	if err := s.do(ctx, http.MethodPost, "/incidents/"+url.PathEscape(incidentID)+"/notes", apiKey, &post, &r); err != nil {
		return nil, err
	}
	return &r.Note, nil
}

func (s *Service) do(ctx context.Context, method, path, apiKey string, body io.Reader, result interface{}) error {
	c := s.config()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.URL, "/")+path, body)
	if err != nil {
		return &Error{Err: errors.Wrapf(err, "failed to create %s request", method)}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Token token="+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.From != "" {
			req.Header.Set("From", c.From)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		type response struct {
			Error struct {
				Message string   `json:"message"`
				Errors  []string `json:"errors"`
			} `json:"error"`
		}
		r := &response{}
		if err := json.Unmarshal(raw, r); err != nil && len(raw) > 0 {
			s.diag.Error("failed to understand PagerDuty error response", err)
		}
		e := &Error{
			StatusCode: resp.StatusCode,
			Message:    r.Error.Message,
			Errors:     r.Error.Errors,
		}
		if len(e.Errors) > 0 {
			s.diag.Error("PagerDuty rejected request: "+strings.Join(e.Errors, "; "), e)
		}
		return e
	}

	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to decode PagerDuty response")}
	}
	return nil
}
