// Package rundecktest provides a fake Rundeck server that records job runs.
package rundecktest

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
)

type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	requests []Request
	closed   bool

	status   int
	response string
}

// NewServer returns a server that answers every request with status and the raw JSON response.
func NewServer(status int, response string) *Server {
	s := &Server{
		status:   status,
		response: response,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
		}
		req.Body, _ = ioutil.ReadAll(r.Body)
		if len(req.Body) > 0 {
			json.Unmarshal(req.Body, &req.Options)
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		w.Write([]byte(s.response))
	}))
	s.ts = ts
	s.URL = ts.URL
	return s
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ts.Close()
}

type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Options map[string]interface{}
}
