// Package pagerdutytest provides a fake PagerDuty REST API that serves
// a fixed incident list and records every request.
package pagerdutytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	requests []Request
	closed   bool

	// Incidents are listed by GET /incidents.
	Incidents []Incident
	// ListStatus and ListError override the response of GET /incidents.
	ListStatus int
	ListError  string
	// NoteStatus and NoteError override the response of POST /incidents/{id}/notes.
	NoteStatus int
	NoteError  string
	// ErrorDetails are sent as error.errors with every error response.
	ErrorDetails []string
}

func NewServer(incidents ...Incident) *Server {
	s := &Server{
		Incidents:  incidents,
		ListStatus: http.StatusOK,
		NoteStatus: http.StatusCreated,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pr := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			From:          r.Header.Get("From"),
		}
		if r.Method == http.MethodPost {
			json.NewDecoder(r.Body).Decode(&pr.PostData)
		}
		s.mu.Lock()
		s.requests = append(s.requests, pr)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/incidents":
			s.writeList(w, pr.Query.Get("incident_key"))
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/incidents/") && strings.HasSuffix(r.URL.Path, "/notes"):
			s.writeNote(w, pr.PostData.Note)
		default:
			s.writeError(w, http.StatusNotFound, "Not Found")
		}
	}))
	s.ts = ts
	s.URL = ts.URL
	return s
}

// writeList lists the incidents with key. Incidents without a key match any key.
func (s *Server) writeList(w http.ResponseWriter, key string) {
	if s.ListStatus/100 != 2 {
		s.writeError(w, s.ListStatus, s.ListError)
		return
	}
	incidents := []Incident{}
	for _, i := range s.Incidents {
		if i.IncidentKey == "" || i.IncidentKey == key {
			incidents = append(incidents, i)
		}
	}
	w.WriteHeader(s.ListStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"incidents": incidents,
		"limit":     25,
		"offset":    0,
		"more":      false,
	})
}

func (s *Server) writeNote(w http.ResponseWriter, n Note) {
	if s.NoteStatus/100 != 2 {
		s.writeError(w, s.NoteStatus, s.NoteError)
		return
	}
	n.ID = "PWL7QXS"
	w.WriteHeader(s.NoteStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"note": n})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if message == "" && len(s.ErrorDetails) == 0 {
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    2001,
			"errors":  s.ErrorDetails,
		},
	})
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
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	From          string
	PostData      PostData
}

type Incident struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	IncidentKey string `json:"incident_key,omitempty"`
}

type Note struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

type PostData struct {
	Note Note `json:"note"`
}
