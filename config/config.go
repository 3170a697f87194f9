// Package config loads a supervise.Policy from a configuration file and the
// environment.
//
// Recognised keys, with their environment variable for the prefix "JOB":
//
//	deadline           JOB_DEADLINE           duration, e.g. "90s"
//	max_timeout_tries  JOB_MAX_TIMEOUT_TRIES  integer
//	max_error_tries    JOB_MAX_ERROR_TRIES    integer
//	timeout_delay      JOB_TIMEOUT_DELAY      duration
//	error_delay        JOB_ERROR_DELAY        duration
//
// Environment variables take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"andy.dev/supervise"
)

var validate = validator.New()

// Load reads a policy from the file at path, which may be YAML, JSON or TOML,
// and from environment variables starting with envPrefix. A missing file is
// not an error; an empty path skips the file. Unset keys take the package
// defaults of supervise.
func Load(path, envPrefix string) (supervise.Policy, error) {
	v := viper.New()
	setDefaults(v, supervise.DefaultPolicy())

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !notFound(err) {
			return supervise.Policy{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var p supervise.Policy
	if err := v.Unmarshal(&p); err != nil {
		return supervise.Policy{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(p); err != nil {
		return supervise.Policy{}, err
	}
	return p, nil
}

// Validate reports an error if any field of p is negative.
func Validate(p supervise.Policy) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, p supervise.Policy) {
	v.SetDefault("deadline", p.Deadline)
	v.SetDefault("max_timeout_tries", p.MaxTimeoutTries)
	v.SetDefault("max_error_tries", p.MaxErrorTries)
	v.SetDefault("timeout_delay", p.TimeoutDelay)
	v.SetDefault("error_delay", p.ErrorDelay)
}

func notFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}
