// Package config loads a querycounter.AnalysisConfig from a YAML file and QUERYCOUNTER_* environment variables.
//
// Unset values keep their defaults, environment variables override file values.
// Setting heuristic paths enables heuristics unless heuristics are explicitly disabled.
//
// Example file:
//
//	alert_threshold: 3
//	raise_if_exceeds: true
//	traceback_enabled: true
//	heuristic_paths:
//	  - internal/app/
//	max_report_frames: 3
//	dialect: mysql
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
)

const (
	EnvAlertThreshold            = "QUERYCOUNTER_ALERT_THRESHOLD"
	EnvRaiseIfExceeds            = "QUERYCOUNTER_RAISE_IF_EXCEEDS"
	EnvLogNoAlert                = "QUERYCOUNTER_LOG_NO_ALERT"
	EnvTracebackEnabled          = "QUERYCOUNTER_TRACEBACK_ENABLED"
	EnvHeuristicsEnabled         = "QUERYCOUNTER_HEURISTICS_ENABLED"
	EnvHeuristicPaths            = "QUERYCOUNTER_HEURISTIC_PATHS"
	EnvMaxReportFrames           = "QUERYCOUNTER_MAX_REPORT_FRAMES"
	EnvAccumulateAcrossIntervals = "QUERYCOUNTER_ACCUMULATE_ACROSS_INTERVALS"
	EnvDialect                   = "QUERYCOUNTER_DIALECT"
)

var ErrReadingConfigFailed = errors.New("reading config file failed")
var ErrParsingConfigFailed = errors.New("parsing config file failed")
var ErrInvalidEnvValue = errors.New("invalid environment variable value")

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// fileConfig mirrors querycounter.AnalysisConfig; nil fields are not set in the file.
type fileConfig struct {
	AlertThreshold            *int     `yaml:"alert_threshold"`
	RaiseIfExceeds            *bool    `yaml:"raise_if_exceeds"`
	LogNoAlert                *bool    `yaml:"log_no_alert"`
	TracebackEnabled          *bool    `yaml:"traceback_enabled"`
	HeuristicsEnabled         *bool    `yaml:"heuristics_enabled"`
	HeuristicPaths            []string `yaml:"heuristic_paths"`
	MaxReportFrames           *int     `yaml:"max_report_frames"`
	AccumulateAcrossIntervals *bool    `yaml:"accumulate_across_intervals"`
	Dialect                   *string  `yaml:"dialect"`
}

// Load reads the YAML file at path on top of the defaults, then applies the environment.
// An empty path skips the file.
func Load(path string) (querycounter.AnalysisConfig, error) {
	config := querycounter.DefaultAnalysisConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return querycounter.AnalysisConfig{}, errors.Join(ErrReadingConfigFailed, err)
		}

		if config, err = Parse(data); err != nil {
			return querycounter.AnalysisConfig{}, err
		}
	}

	return FromEnv(config, os.LookupEnv)
}

// Parse decodes YAML data on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (querycounter.AnalysisConfig, error) {
	var file fileConfig

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return querycounter.AnalysisConfig{}, errors.Join(ErrParsingConfigFailed, err)
	}

	config := file.apply(querycounter.DefaultAnalysisConfig())

	if err := config.Validate(); err != nil {
		return querycounter.AnalysisConfig{}, err
	}

	return config, nil
}

// FromEnv overrides base with the QUERYCOUNTER_* variables found by lookup and validates the result.
// A nil lookup uses os.LookupEnv.
func FromEnv(base querycounter.AnalysisConfig, lookup LookupFunc) (querycounter.AnalysisConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := envReader{lookup: lookup}
	config := base
	config.HeuristicPaths = append([]string{}, base.HeuristicPaths...)

	env.readInt(EnvAlertThreshold, &config.AlertThreshold)
	env.readBool(EnvRaiseIfExceeds, &config.RaiseIfExceeds)
	env.readBool(EnvLogNoAlert, &config.LogNoAlert)
	env.readBool(EnvTracebackEnabled, &config.TracebackEnabled)
	env.readInt(EnvMaxReportFrames, &config.MaxReportFrames)
	env.readBool(EnvAccumulateAcrossIntervals, &config.AccumulateAcrossIntervals)
	env.readDialect(EnvDialect, &config.Dialect)

	if paths, ok := env.readList(EnvHeuristicPaths); ok {
		config.HeuristicPaths = paths
		config.HeuristicsEnabled = len(paths) > 0
	}
	env.readBool(EnvHeuristicsEnabled, &config.HeuristicsEnabled)

	if len(env.errs) > 0 {
		return querycounter.AnalysisConfig{}, errors.Join(env.errs...)
	}

	if err := config.Validate(); err != nil {
		return querycounter.AnalysisConfig{}, err
	}

	return config, nil
}

func (f fileConfig) apply(config querycounter.AnalysisConfig) querycounter.AnalysisConfig {
	setIfPresent(&config.AlertThreshold, f.AlertThreshold)
	setIfPresent(&config.RaiseIfExceeds, f.RaiseIfExceeds)
	setIfPresent(&config.LogNoAlert, f.LogNoAlert)
	setIfPresent(&config.TracebackEnabled, f.TracebackEnabled)
	setIfPresent(&config.MaxReportFrames, f.MaxReportFrames)
	setIfPresent(&config.AccumulateAcrossIntervals, f.AccumulateAcrossIntervals)

	if f.Dialect != nil {
		config.Dialect = querycounter.Dialect(strings.ToLower(strings.TrimSpace(*f.Dialect)))
	}

	if len(f.HeuristicPaths) > 0 {
		config.HeuristicPaths = append([]string{}, f.HeuristicPaths...)
		config.HeuristicsEnabled = true
	}
	setIfPresent(&config.HeuristicsEnabled, f.HeuristicsEnabled)

	return config
}

func setIfPresent[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (r *envReader) readInt(key string, target *int) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		r.errs = append(r.errs, errors.Join(ErrInvalidEnvValue, fmt.Errorf("%s=%q", key, raw), err))
		return
	}

	*target = value
}

func (r *envReader) readBool(key string, target *bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}

	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		r.errs = append(r.errs, errors.Join(ErrInvalidEnvValue, fmt.Errorf("%s=%q", key, raw), err))
		return
	}

	*target = value
}

func (r *envReader) readDialect(key string, target *querycounter.Dialect) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}

	*target = querycounter.Dialect(strings.ToLower(strings.TrimSpace(raw)))
}

// readList splits a comma separated value, dropping empty elements.
func (r *envReader) readList(key string) ([]string, bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return nil, false
	}

	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	return values, true
}
