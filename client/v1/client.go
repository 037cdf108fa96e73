// Rundeck action HTTP API client written in Go
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	DefaultUserAgent = "RundeckActionClient"

	basePath = "/rundeck/v1"
)

// HTTP configuration for connecting to a rundeckactiond server.
type Config struct {
	// The URL of the rundeckactiond server.
	URL string

	// Timeout for API requests, defaults to no timeout.
	Timeout time.Duration

	// UserAgent is the http User Agent, defaults to "RundeckActionClient".
	UserAgent string

	// InsecureSkipVerify gets passed to the http client, if true, it will
	// skip https certificate verification. Defaults to false.
	InsecureSkipVerify bool

	// TLSConfig allows the user to set their own TLS config for the HTTP
	// Client. If set, this option overrides InsecureSkipVerify.
	TLSConfig *tls.Config
}

// Basic HTTP client
type Client struct {
	url        *url.URL
	userAgent  string
	httpClient *http.Client
}

// Create a new client.
func New(conf Config) (*Client, error) {
	if conf.UserAgent == "" {
		conf.UserAgent = DefaultUserAgent
	}

	u, err := url.Parse(conf.URL)
	if err != nil {
		return nil, err
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf(
			"Unsupported protocol scheme: %s, your address must start with http:// or https://",
			u.Scheme,
		)
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: conf.InsecureSkipVerify,
		},
	}
	if conf.TLSConfig != nil {
		tr.TLSClientConfig = conf.TLSConfig
	}
	return &Client{
		url:       u,
		userAgent: conf.UserAgent,
		httpClient: &http.Client{
			Timeout:   conf.Timeout,
			Transport: tr,
		},
	}, nil
}

// Result of an action execution.
// Data holds the Rundeck execution when Status is "ok", Message the failure otherwise.
type Result struct {
	Status   string          `json:"status"`
	ActionID string          `json:"actionId"`
	Data     json.RawMessage `json:"data,omitempty"`
	Message  string          `json:"message,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

func (r Result) OK() bool {
	return r.Status == "ok"
}

// ExecuteOptions describe an ad hoc action.
type ExecuteOptions struct {
	ActionID string                 `json:"actionId,omitempty"`
	Config   map[string]interface{} `json:"config"`
	Secrets  map[string]interface{} `json:"secrets"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

func (c *Client) apiURL(p string) string {
	u := *c.url
	u.Path = path.Join(u.Path, basePath, p)
	return u.String()
}

// Perform the request.
// If result is not nil the response body is JSON decoded into result.
// Codes is a list of valid response codes.
func (c *Client) do(req *http.Request, result interface{}, codes ...int) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	valid := false
	for _, code := range codes {
		if resp.StatusCode == code {
			valid = true
			break
		}
	}
	if !valid {
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		type errResp struct {
			Error string `json:"error"`
		}
		rp := errResp{}
		json.Unmarshal(body, &rp)
		if rp.Error != "" {
			return nil, errors.New(rp.Error)
		}
		return nil, fmt.Errorf("invalid response: code %d: body: %s", resp.StatusCode, string(body))
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return resp, nil
}

func (c *Client) postJSON(p string, body interface{}, result interface{}, codes ...int) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.apiURL(p), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, result, codes...)
	return err
}

// Ping the server for a response.
// Ping returns how long the request took and an error if one occurred.
func (c *Client) Ping() (time.Duration, error) {
	now := time.Now()
	req, err := http.NewRequest("GET", c.apiURL("ping"), nil)
	if err != nil {
		return 0, err
	}
	if _, err := c.do(req, nil, http.StatusNoContent); err != nil {
		return 0, err
	}
	return time.Since(now), nil
}

// ListActions returns the ids of the actions loaded by the server.
func (c *Client) ListActions() ([]string, error) {
	req, err := http.NewRequest("GET", c.apiURL("actions"), nil)
	if err != nil {
		return nil, err
	}
	r := struct {
		Actions []string `json:"actions"`
	}{}
	if _, err := c.do(req, &r, http.StatusOK); err != nil {
		return nil, err
	}
	return r.Actions, nil
}

// Execute runs an ad hoc action.
// A failed execution is not an error, it is reported by the Result.
func (c *Client) Execute(o ExecuteOptions) (Result, error) {
	var r Result
	err := c.postJSON("execute", o, &r, http.StatusOK, http.StatusBadGateway)
	return r, err
}

// ExecuteAction runs the action loaded by the server under id.
// A failed execution is not an error, it is reported by the Result.
func (c *Client) ExecuteAction(id string, params map[string]interface{}) (Result, error) {
	body := struct {
		Params map[string]interface{} `json:"params,omitempty"`
	}{Params: params}
	var r Result
	err := c.postJSON(path.Join("actions", id, "execute"), body, &r, http.StatusOK, http.StatusBadGateway)
	return r, err
}

// Set the logging level.
// Level must be one of DEBUG, INFO, WARN or ERROR.
func (c *Client) LogLevel(level string) error {
	body := struct {
		Level string `json:"level"`
	}{Level: level}
	return c.postJSON("loglevel", body, nil, http.StatusNoContent)
}
