package diagnostic

import (
	"time"

	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/action"
	"go.uber.org/zap"
)

func logFieldsFromContext(ctx []keyvalue.T) []zap.Field {
	fields := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fields[i] = zap.String(kv.Key, kv.Value)
	}
	return fields
}

// Cmd handler

type CmdHandler struct {
	l *zap.Logger
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *CmdHandler) Info(msg string, ctx ...keyvalue.T) {
	h.l.Info(msg, logFieldsFromContext(ctx)...)
}

func (h *CmdHandler) StartingRun(version, commit string) {
	h.l.Info("starting rundeck action daemon", zap.String("version", version), zap.String("commit", commit))
}

// Server handler

type ServerHandler struct {
	l *zap.Logger
}

func (h *ServerHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *ServerHandler) Info(msg string, ctx ...keyvalue.T) {
	h.l.Info(msg, logFieldsFromContext(ctx)...)
}

func (h *ServerHandler) Debug(msg string, ctx ...keyvalue.T) {
	h.l.Debug(msg, logFieldsFromContext(ctx)...)
}

// Action handler

type ActionHandler struct {
	l *zap.Logger
}

func (h *ActionHandler) WithContext(ctx ...keyvalue.T) action.Diagnostic {
	return &ActionHandler{
		l: h.l.With(logFieldsFromContext(ctx)...),
	}
}

func (h *ActionHandler) TriggeredJob(link string) {
	h.l.Info("triggered rundeck job", zap.String("execution", link))
}

func (h *ActionHandler) FailedToTriggerJob(err error) {
	h.l.Warn("failed to trigger rundeck job", zap.Error(err))
}

func (h *ActionHandler) NotificationMisconfigured() {
	h.l.Warn("neither dedup key nor slack webhook configured, execution not reported")
}

func (h *ActionHandler) SentSlackMessage() {
	h.l.Info("sent slack message")
}

func (h *ActionHandler) FailedToSendSlackMessage(err error) {
	h.l.Warn("failed to send slack message", zap.Error(err))
}

func (h *ActionHandler) FoundIncident(incidentID string, matches int) {
	h.l.Info("found incident", zap.String("incident", incidentID), zap.Int("matches", matches))
}

func (h *ActionHandler) FailedToFindIncident(dedupKey string, err error) {
	if err == nil {
		h.l.Warn("no incident found", zap.String("dedup_key", dedupKey))
		return
	}
	h.l.Warn("failed to list incidents", zap.String("dedup_key", dedupKey), zap.Error(err))
}

func (h *ActionHandler) AnnotatedIncident(incidentID string) {
	h.l.Info("added note to incident", zap.String("incident", incidentID))
}

func (h *ActionHandler) FailedToAnnotateIncident(incidentID string, err error) {
	h.l.Warn("failed to add note to incident", zap.String("incident", incidentID), zap.Error(err))
}

func (h *ActionHandler) Executed(status action.Status, reason action.Reason, d time.Duration) {
	fields := []zap.Field{zap.String("status", string(status)), zap.Duration("duration", d)}
	if reason != action.ReasonNone {
		fields = append(fields, zap.String("reason", string(reason)))
	}
	h.l.Debug("executed action", fields...)
}

// Rundeck handler

type RundeckHandler struct {
	l *zap.Logger
}

func (h *RundeckHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// PagerDuty handler

type PagerDutyHandler struct {
	l *zap.Logger
}

func (h *PagerDutyHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Slack handler

type SlackHandler struct {
	l *zap.Logger
}

func (h *SlackHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// HTTPD handler

type HTTPDHandler struct {
	l *zap.Logger
}

func (h *HTTPDHandler) StartingService() {
	h.l.Info("starting HTTP service")
}

func (h *HTTPDHandler) StoppedService() {
	h.l.Info("closed HTTP service")
}

func (h *HTTPDHandler) ShutdownTimeout() {
	h.l.Error("shutdown timedout, forcefully closing all remaining connections")
}

func (h *HTTPDHandler) ListeningOn(addr string) {
	h.l.Info("listening on", zap.String("addr", addr))
}

func (h *HTTPDHandler) HTTP(
	host string,
	method string,
	uri string,
	status int,
	userAgent string,
	duration time.Duration,
) {
	h.l.Info("http request",
		zap.String("host", host),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Int("status", status),
		zap.String("agent", userAgent),
		zap.Duration("duration", duration),
	)
}

func (h *HTTPDHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Load handler

type LoadHandler struct {
	l *zap.Logger
}

func (h *LoadHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *LoadHandler) Debug(msg string) {
	h.l.Debug(msg)
}

func (h *LoadHandler) Loading(el string, file string) {
	h.l.Debug("loading object from file", zap.String("object", el), zap.String("file", file))
}
