// Package load reads action definitions from a directory so they can be
// executed by id.
package load

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ghodss/yaml"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/pkg/errors"
)

type Diagnostic interface {
	Debug(msg string)
	Error(msg string, err error)
	Loading(thing string, file string)
}

// Definition is a registered action: the Rundeck job to run and the credentials to use.
type Definition struct {
	ID      string
	Config  action.Config
	Secrets action.Secrets
	// File the definition was loaded from.
	File string
}

type Service struct {
	mu      sync.RWMutex
	config  Config
	actions map[string]Definition

	diag Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		config:  c,
		actions: map[string]Definition{},
		diag:    d,
	}
}

func (s *Service) Open() error {
	return s.Load()
}

func (s *Service) Close() error {
	return nil
}

// Update replaces the configuration. Definitions are re-read by the next Load.
func (s *Service) Update(c Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = c
}

// Action returns the definition registered under id.
func (s *Service) Action(id string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.actions[id]
	return d, ok
}

// Actions returns the sorted ids of all registered definitions.
func (s *Service) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.actions))
	for id := range s.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads every definition file in the configured directory and replaces
// the registered actions. On error the previously loaded actions are kept.
func (s *Service) Load() error {
	s.mu.RLock()
	c := s.config
	s.mu.RUnlock()

	actions := map[string]Definition{}
	if c.Enabled {
		if _, err := os.Stat(c.Dir); os.IsNotExist(err) {
			s.diag.Debug("skipping load... load directory does not exists")
		} else {
			files, err := actionFiles(c.Dir)
			if err != nil {
				s.diag.Error("failed to list action files", err)
				return err
			}
			for _, f := range files {
				s.diag.Loading("action", f)
				d, err := readDefinition(f)
				if err != nil {
					s.diag.Error("failed to load action", err)
					return err
				}
				if prev, ok := actions[d.ID]; ok {
					err := errors.Errorf("action %q defined in both %s and %s", d.ID, prev.File, d.File)
					s.diag.Error("failed to load action", err)
					return err
				}
				actions[d.ID] = d
			}
		}
	}

	s.mu.Lock()
	s.actions = actions
	s.mu.Unlock()
	return nil
}

// actionFiles gets a slice of all files with the .json, .yml, and
// .yaml file extentions in dir.
func actionFiles(dir string) ([]string, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var actions []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		filename := file.Name()
		switch ext := filepath.Ext(filename); ext {
		case ".yml", ".json", ".yaml":
			actions = append(actions, filepath.Join(dir, filename))
		default:
			continue
		}
	}
	return actions, nil
}

type fileDefinition struct {
	ID      string                 `json:"id"`
	Config  map[string]interface{} `json:"config"`
	Secrets map[string]interface{} `json:"secrets"`
}

func readDefinition(f string) (Definition, error) {
	data, err := ioutil.ReadFile(f)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "failed to read file %s", f)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "invalid action file %s", f)
	}
	if d.ID == "" {
		d.ID = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
	}
	d.File = f
	return d, nil
}

// ParseDefinition decodes a definition from YAML or JSON data.
func ParseDefinition(data []byte) (Definition, error) {
	// YAML is a superset of JSON so both are read the same way.
	data, err := yaml.YAMLToJSON(data)
	if err != nil {
		return Definition{}, errors.Wrap(err, "failed to convert YAML to JSON")
	}
	var fd fileDefinition
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fd); err != nil {
		return Definition{}, errors.Wrap(err, "failed to decode action definition")
	}

	c, err := action.DecodeConfig(fd.Config)
	if err != nil {
		return Definition{}, err
	}
	secrets, err := action.DecodeSecrets(fd.Secrets)
	if err != nil {
		return Definition{}, err
	}
	return Definition{
		ID:      fd.ID,
		Config:  c,
		Secrets: secrets,
	}, nil
}
