package diagnostic

import (
	"io"
	"os"

	"github.com/influxdata/rundeckaction/services/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service hands out the Diagnostic implementations of every other service.
// All of them log through the root logger of the logging service.
type Service struct {
	logger *zap.Logger
}

func NewService(l logging.Interface) *Service {
	return &Service{
		logger: l.Root(),
	}
}

// BootstrapMainHandler returns the handler used before the configuration
// has been read, it logs to stderr at info level.
func BootstrapMainHandler() *CmdHandler {
	return NewBootstrapHandler(os.Stderr)
}

func NewBootstrapHandler(w io.Writer) *CmdHandler {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.LevelKey = "lvl"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), zap.InfoLevel)
	return &CmdHandler{l: zap.New(core).With(zap.String("service", "run"))}
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{l: s.logger.With(zap.String("service", "run"))}
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{l: s.logger.With(zap.String("source", "srv"))}
}

func (s *Service) NewActionHandler() *ActionHandler {
	return &ActionHandler{l: s.logger.With(zap.String("service", "action"))}
}

func (s *Service) NewRundeckHandler() *RundeckHandler {
	return &RundeckHandler{l: s.logger.With(zap.String("service", "rundeck"))}
}

func (s *Service) NewPagerDutyHandler() *PagerDutyHandler {
	return &PagerDutyHandler{l: s.logger.With(zap.String("service", "pagerduty"))}
}

func (s *Service) NewSlackHandler() *SlackHandler {
	return &SlackHandler{l: s.logger.With(zap.String("service", "slack"))}
}

func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{l: s.logger.With(zap.String("service", "http"))}
}

func (s *Service) NewLoadHandler() *LoadHandler {
	return &LoadHandler{l: s.logger.With(zap.String("service", "load"))}
}
