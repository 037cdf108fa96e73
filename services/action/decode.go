package action

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// DecodeConfig decodes and validates the configuration object of an action.
// apiVersion defaults to 24.
func DecodeConfig(options map[string]interface{}) (Config, error) {
	c := NewConfig()
	if err := decodeOptions(options, &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return c, nil
}

// DecodeSecrets decodes and validates the secrets object of an action.
func DecodeSecrets(options map[string]interface{}) (Secrets, error) {
	var s Secrets
	if err := decodeOptions(options, &s); err != nil {
		return Secrets{}, err
	}
	if err := s.Validate(); err != nil {
		return Secrets{}, errors.Wrap(err, "invalid secrets")
	}
	return s, nil
}

// DecodeParams decodes the params object of an invocation. All params are optional.
func DecodeParams(options map[string]interface{}) (Params, error) {
	var p Params
	if err := decodeOptions(options, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

func decodeOptions(options map[string]interface{}, c interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      c,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(options); err != nil {
		return errors.Wrapf(err, "failed to decode options into %T", c)
	}
	return nil
}
