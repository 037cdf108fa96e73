package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface for creating new loggers
type Interface interface {
	Root() *zap.Logger
	SetLevel(level string) error
}

type Service struct {
	root   *zap.Logger
	c      Config
	stdout io.Writer
	stderr io.Writer
	closer io.Closer
	level  zap.AtomicLevel
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
	}
}

func (s *Service) Open() error {
	var output io.Writer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return err
			}
		}

		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	// Set level from configuration
	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.LevelKey = "lvl"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(s.c.Encoding) {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return fmt.Errorf("unknown log encoding %s", s.c.Encoding)
	}

	s.root = zap.New(zapcore.NewCore(encoder, zapcore.AddSync(output), s.level))
	return nil
}

func (s *Service) Close() error {
	if s.root != nil {
		// Syncing stderr/stdout fails on some platforms, ignore it.
		_ = s.root.Sync()
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Service) Root() *zap.Logger {
	return s.root
}

func (s *Service) SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	s.level.SetLevel(l)
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel, nil
	case "INFO":
		return zap.InfoLevel, nil
	case "WARN":
		return zap.WarnLevel, nil
	case "ERROR":
		return zap.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown logging level %s", level)
	}
}
