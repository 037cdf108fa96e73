// Package rundeck triggers job executions through the Rundeck API.
package rundeck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// NoLink is used in place of an execution permalink when Rundeck did not return one.
const NoLink = "(no execution link)"

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

// Job identifies a Rundeck job and how to reach it.
type Job struct {
	// Base URL of the Rundeck server.
	URL string
	// API version, the service default is used when zero.
	APIVersion int
	ID         string
	// Extra headers sent with the request. They override Accept and Content-Type
	// but can not replace the auth token header.
	Headers map[string]string
}

// ExecutionsURL returns the URL used to run the job.
func (j Job) ExecutionsURL(defaultVersion int) string {
	version := j.APIVersion
	if version == 0 {
		version = defaultVersion
	}
	return fmt.Sprintf("%s/api/%d/job/%s/executions", strings.TrimRight(j.URL, "/"), version, j.ID)
}

// Execution is the response Rundeck returns for a started job.
type Execution struct {
	Permalink *string `json:"permalink"`

	// Raw is the complete response body.
	// A body that is not JSON is kept as a JSON string.
	Raw json.RawMessage `json:"-"`
}

// Link returns the execution permalink, or NoLink if Rundeck did not send one.
func (e *Execution) Link() string {
	if e == nil || e.Permalink == nil || *e.Permalink == "" {
		return NoLink
	}
	return *e.Permalink
}

// Error is returned when a job could not be run.
// Message holds the error reported by Rundeck if it sent one.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Run starts an execution of job using token for authentication.
// options are sent verbatim as the request body, a nil map sends no body.
func (s *Service) Run(ctx context.Context, job Job, token string, options map[string]interface{}) (*Execution, error) {
	c := s.config()

	var body io.Reader
	if options != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(options); err != nil {
			return nil, &Error{Err: errors.Wrap(err, "failed to encode job options")}
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.ExecutionsURL(c.APIVersion), body)
	if err != nil {
		return nil, &Error{Err: errors.Wrap(err, "failed to create POST request")}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}
	// Set last so that configured headers cannot replace the token.
	req.Header.Set(AuthTokenHeader, token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		type response struct {
			Message string `json:"message"`
		}
		r := &response{}
		if err := json.Unmarshal(raw, r); err != nil && len(raw) > 0 {
			s.diag.Error("failed to understand Rundeck error response", err)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: r.Message}
	}

	e := &Execution{}
	if len(raw) == 0 {
		return e, nil
	}
	if !json.Valid(raw) {
		s.diag.Error("failed to decode Rundeck execution response", errors.New("response body is not valid JSON"))
		e.Raw, _ = json.Marshal(string(raw))
		return e, nil
	}
	e.Raw = json.RawMessage(raw)
	if err := json.Unmarshal(raw, e); err != nil {
		s.diag.Error("failed to read permalink from Rundeck execution response", err)
		e.Permalink = nil
	}
	return e, nil
}
