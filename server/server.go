// Provides a server type for starting and configuring a rundeck action server.
package server

import (
	"fmt"
	"net/http"

	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/influxdata/rundeckaction/services/diagnostic"
	"github.com/influxdata/rundeckaction/services/httpclient"
	"github.com/influxdata/rundeckaction/services/httpd"
	"github.com/influxdata/rundeckaction/services/load"
	"github.com/influxdata/rundeckaction/services/logging"
	"github.com/influxdata/rundeckaction/services/pagerduty"
	"github.com/influxdata/rundeckaction/services/rundeck"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Diagnostic interface {
	Debug(msg string, ctx ...keyvalue.T)
	Info(msg string, ctx ...keyvalue.T)
	Error(msg string, err error)
}

type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

// Server represents a container for the action services.
// It is built using a Config and it manages the startup and shutdown of all
// services in the proper order.
type Server struct {
	config *Config

	err chan error

	HTTPClient *http.Client
	Registry   *prometheus.Registry

	RundeckService   *rundeck.Service
	PagerDutyService *pagerduty.Service
	SlackService     *slack.Service
	ActionService    *action.Service
	LoadService      *load.Service
	HTTPDService     *httpd.Service

	// List of services in startup order
	Services []Service
	// Map of service name to index in Services list
	ServicesByName map[string]int

	// Map of services capable of receiving configuration updates.
	DynamicServices map[string]Updater

	BuildInfo BuildInfo

	DiagService *diagnostic.Service
	LogService  logging.Interface
	Diag        Diagnostic
}

// New returns a new instance of Server built from a config.
func New(c *Config, buildInfo BuildInfo, logService logging.Interface) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s. To generate a valid configuration file run `rundeckactiond config > rundeck-action.generated.conf`.", err)
	}
	client, err := httpclient.New(c.HTTPClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http client")
	}
	d := diagnostic.NewService(logService)
	s := &Server{
		config:          c,
		err:             make(chan error),
		HTTPClient:      client,
		Registry:        prometheus.NewRegistry(),
		ServicesByName:  make(map[string]int),
		DynamicServices: make(map[string]Updater),
		BuildInfo:       buildInfo,
		DiagService:     d,
		LogService:      logService,
		Diag:            d.NewServerHandler(),
	}
	s.Diag.Info("rundeck action server", keyvalue.KV("version", buildInfo.Version))

	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.initHTTPDService()

	s.appendRundeckService()
	s.appendPagerDutyService()
	s.appendSlackService()
	if err := s.appendActionService(); err != nil {
		return nil, err
	}
	s.appendLoadService()

	// Append HTTPD Service last so that the API is not listening till everything else succeeded.
	s.appendHTTPDService()

	return s, nil
}

func (s *Server) AppendService(name string, srv Service) {
	if _, ok := s.ServicesByName[name]; ok {
		// Should be unreachable code
		panic("cannot append service twice")
	}
	i := len(s.Services)
	s.Services = append(s.Services, srv)
	s.ServicesByName[name] = i
}

type dynamicService interface {
	Service
	Updater
}

func (s *Server) SetDynamicService(name string, srv dynamicService) {
	s.DynamicServices[name] = srv
}

func (s *Server) initHTTPDService() {
	srv := httpd.NewService(s.config.HTTP, s.DiagService.NewHTTPDHandler())
	srv.Handler.LoggingService = s.LogService
	srv.Handler.Gatherer = s.Registry
	s.HTTPDService = srv
}

func (s *Server) appendHTTPDService() {
	s.AppendService("httpd", s.HTTPDService)
}

func (s *Server) appendRundeckService() {
	srv := rundeck.NewService(s.config.Rundeck, s.HTTPClient, s.DiagService.NewRundeckHandler())
	s.RundeckService = srv

	s.SetDynamicService("rundeck", srv)
	s.AppendService("rundeck", srv)
}

func (s *Server) appendPagerDutyService() {
	srv := pagerduty.NewService(s.config.PagerDuty, s.HTTPClient, s.DiagService.NewPagerDutyHandler())
	s.PagerDutyService = srv

	s.SetDynamicService("pagerduty", srv)
	s.AppendService("pagerduty", srv)
}

func (s *Server) appendSlackService() {
	srv := slack.NewService(s.config.Slack, s.HTTPClient, s.DiagService.NewSlackHandler())
	s.SlackService = srv

	s.SetDynamicService("slack", srv)
	s.AppendService("slack", srv)
}

func (s *Server) appendActionService() error {
	srv := action.NewService(s.DiagService.NewActionHandler())
	srv.RundeckService = s.RundeckService
	srv.PagerDutyService = s.PagerDutyService
	srv.SlackService = s.SlackService

	for _, c := range srv.Collectors() {
		if err := s.Registry.Register(c); err != nil {
			return errors.Wrap(err, "failed to register action metrics")
		}
	}

	s.HTTPDService.Handler.ActionService = srv
	s.ActionService = srv
	s.AppendService("action", srv)
	return nil
}

func (s *Server) appendLoadService() {
	srv := load.NewService(s.config.Load, s.DiagService.NewLoadHandler())

	s.HTTPDService.Handler.LoadService = srv
	s.LoadService = srv
	s.AppendService("load", srv)
}

// Err returns an error channel that multiplexes all out of band errors received from all services.
func (s *Server) Err() <-chan error { return s.err }

// Open opens all the services.
func (s *Server) Open() error {
	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}

	go s.watchServices()

	return nil
}

func (s *Server) startServices() error {
	for _, service := range s.Services {
		s.Diag.Debug("opening service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.Diag.Debug("opened service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

// Watch if something dies
func (s *Server) watchServices() {
	err := <-s.HTTPDService.Err()
	s.err <- err
}

// Update applies c to the running services.
// Only the remote service sections and the load directory can change,
// the http server and logging keep the configuration they were started with.
func (s *Server) Update(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"rundeck":   c.Rundeck,
		"pagerduty": c.PagerDuty,
		"slack":     c.Slack,
	}
	for name, config := range updates {
		srv, ok := s.DynamicServices[name]
		if !ok {
			return fmt.Errorf("received configuration update for unknown dynamic service %s", name)
		}
		if err := srv.Update([]interface{}{config}); err != nil {
			return errors.Wrapf(err, "failed to update configuration for service %s", name)
		}
	}
	s.LoadService.Update(c.Load)
	s.config = c
	return nil
}

// Reload reads the action definitions again.
func (s *Server) Reload() {
	if err := s.LoadService.Load(); err != nil {
		s.Diag.Error("failed to reload action definitions", err)
		return
	}
	s.Diag.Info("reloaded action definitions", keyvalue.KV("count", fmt.Sprint(len(s.LoadService.Actions()))))
}

// Close shuts down all services.
func (s *Server) Close() error {
	// Stop accepting executions first.
	if err := s.HTTPDService.Close(); err != nil {
		s.Diag.Error("error closing httpd service", err)
	}

	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		if service == Service(s.HTTPDService) {
			continue
		}
		s.Diag.Debug("closing service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Close(); err != nil {
			s.Diag.Error("error closing service", err)
		}
		s.Diag.Debug("closed service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

// Service represents a service attached to the server.
type Service interface {
	Open() error
	Close() error
}

// Updater represents a service that can have its configuration updated while running.
type Updater interface {
	Update(c []interface{}) error
}
