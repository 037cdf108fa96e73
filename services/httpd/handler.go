package httpd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/influxdata/httprouter"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/influxdata/rundeckaction/services/load"
	"github.com/influxdata/rundeckaction/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	BasePath = "/rundeck/v1"

	executePath       = BasePath + "/execute"
	actionsPath       = BasePath + "/actions"
	actionExecutePath = actionsPath + "/:id/execute"
	pingPath          = BasePath + "/ping"
	logLevelPath      = BasePath + "/loglevel"
	metricsPath       = "/metrics"
)

// Handler represents an HTTP handler for the action API.
type Handler struct {
	router     *httprouter.Router
	logEnabled bool
	diag       Diagnostic

	ActionService interface {
		Execute(ctx context.Context, c action.Config, s action.Secrets, p action.Params, actionID string) action.Result
	}
	LoadService interface {
		Action(id string) (load.Definition, bool)
		Actions() []string
	}
	LoggingService interface {
		SetLevel(level string) error
	}
	Gatherer prometheus.Gatherer
}

func NewHandler(logEnabled bool, d Diagnostic) *Handler {
	h := &Handler{
		router:     httprouter.New(),
		logEnabled: logEnabled,
		diag:       d,
	}
	h.router.PanicHandler = h.panicHandler
	h.router.NotFound = http.HandlerFunc(h.serve404)

	h.router.HandlerFunc(http.MethodPost, executePath, h.serveExecute)
	h.router.HandlerFunc(http.MethodGet, actionsPath, h.serveActions)
	h.router.HandlerFunc(http.MethodPost, actionExecutePath, h.serveActionExecute)
	h.router.HandlerFunc(http.MethodGet, pingPath, h.servePing)
	h.router.HandlerFunc(http.MethodHead, pingPath, h.servePing)
	h.router.HandlerFunc(http.MethodPost, logLevelPath, h.serveLogLevel)
	h.router.HandlerFunc(http.MethodGet, metricsPath, h.serveMetrics)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.logEnabled {
		h.router.ServeHTTP(w, r)
		return
	}
	start := time.Now()
	rw := &responseLogger{ResponseWriter: w, status: http.StatusOK}
	h.router.ServeHTTP(rw, r)
	h.diag.HTTP(r.RemoteAddr, r.Method, r.URL.RequestURI(), rw.status, r.UserAgent(), time.Since(start))
}

type executeRequest struct {
	ActionID string                 `json:"actionId"`
	Config   map[string]interface{} `json:"config"`
	Secrets  map[string]interface{} `json:"secrets"`
	Params   map[string]interface{} `json:"params"`
}

// serveExecute runs an action whose config, secrets and params are all supplied by the caller.
func (h *Handler) serveExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HttpError(w, "invalid json: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	c, err := action.DecodeConfig(req.Config)
	if err != nil {
		HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	secrets, err := action.DecodeSecrets(req.Secrets)
	if err != nil {
		HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	p, err := action.DecodeParams(req.Params)
	if err != nil {
		HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	actionID := req.ActionID
	if actionID == "" {
		actionID = uuid.NewActionID()
	}
	h.writeResult(w, h.ActionService.Execute(r.Context(), c, secrets, p, actionID))
}

type actionExecuteRequest struct {
	Params map[string]interface{} `json:"params"`
}

// serveActionExecute runs a loaded action definition, the definition id is used as action id.
func (h *Handler) serveActionExecute(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	d, ok := h.LoadService.Action(id)
	if !ok {
		HttpError(w, "unknown action "+id, true, http.StatusNotFound)
		return
	}
	var req actionExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			HttpError(w, "invalid json: "+err.Error(), true, http.StatusBadRequest)
			return
		}
	}
	p, err := action.DecodeParams(req.Params)
	if err != nil {
		HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	h.writeResult(w, h.ActionService.Execute(r.Context(), d.Config, d.Secrets, p, d.ID))
}

func (h *Handler) writeResult(w http.ResponseWriter, result action.Result) {
	code := http.StatusOK
	if !result.OK() {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, result)
}

type actionsResponse struct {
	Type    string   `json:"type"`
	Actions []string `json:"actions"`
}

func (h *Handler) serveActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, actionsResponse{
		Type:    action.TypeID,
		Actions: h.LoadService.Actions(),
	})
}

func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type logLevelOptions struct {
	Level string `json:"level"`
}

// serveLogLevel sets the log level of the server
func (h *Handler) serveLogLevel(w http.ResponseWriter, r *http.Request) {
	var opt logLevelOptions
	if err := json.NewDecoder(r.Body).Decode(&opt); err != nil {
		HttpError(w, "invalid json: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	if err := h.LoggingService.SetLevel(opt.Level); err != nil {
		HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (h *Handler) serve404(w http.ResponseWriter, r *http.Request) {
	HttpError(w, "not found", true, http.StatusNotFound)
}

// panicHandler handles panics recovered from http handlers.
func (h *Handler) panicHandler(w http.ResponseWriter, r *http.Request, rcv interface{}) {
	h.diag.Error("panic serving "+r.URL.String(), panicError{rcv})
	HttpError(w, "a panic has occurred", true, http.StatusInternalServerError)
}

type panicError struct {
	v interface{}
}

func (p panicError) Error() string {
	return fmt.Sprint(p.v)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// HttpError writes an error to the client in a standard format.
func HttpError(w http.ResponseWriter, err string, pretty bool, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	type errResponse struct {
		Error string `json:"error"`
	}

	response := errResponse{Error: err}
	var b []byte
	if pretty {
		b, _ = json.MarshalIndent(response, "", "    ")
	} else {
		b, _ = json.Marshal(response)
	}
	w.Write(b)
}

type responseLogger struct {
	http.ResponseWriter
	status int
}

func (l *responseLogger) WriteHeader(status int) {
	l.status = status
	l.ResponseWriter.WriteHeader(status)
}
