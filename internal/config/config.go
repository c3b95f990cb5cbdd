package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Prioritizer/internal/ahp"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
	"github.com/MikeSquared-Agency/Prioritizer/internal/ranking"
	"github.com/MikeSquared-Agency/Prioritizer/internal/scoring"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Output   OutputConfig   `yaml:"output"`
	Run      RunConfig      `yaml:"run"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit caps requests per client and minute; 0 disables limiting.
	RateLimit int `yaml:"rate_limit_per_minute"`
}

// DatabaseConfig selects the run store. An empty URL disables persistence.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	URL    string `yaml:"url"`
}

// HermesConfig points at NATS. An empty URL disables run events.
type HermesConfig struct {
	URL string `yaml:"url"`
}

type OutputConfig struct {
	Path    string `yaml:"output_path"`
	Version string `yaml:"version"`
	// OSMapping maps runtime.GOOS to the root a relative Path is placed under.
	OSMapping map[string]string `yaml:"os_mapping"`
	Write     bool              `yaml:"write"`
}

// Root returns the output root for the running OS, or "" if unmapped.
func (o OutputConfig) Root() string {
	return o.OSMapping[runtime.GOOS]
}

type RunConfig struct {
	ScoreRange       scoring.Range `yaml:"score_range"`
	FilterPolicy     string        `yaml:"filter_policy"`
	MissingPolicy    string        `yaml:"missing_policy"`
	DecimalsInScores int           `yaml:"decimals_in_scores"`

	RatingModes          ahp.Modes `yaml:"rating_modes"`
	Method               string    `yaml:"method"`
	ReciprocalTolerance  float64   `yaml:"reciprocal_tolerance"`
	ConsistencyThreshold float64   `yaml:"consistency_threshold"`

	Renormalize         bool     `yaml:"renormalize"`
	NumberOfRankingBins int      `yaml:"number_of_ranking_bins"`
	LowerRankingLimit0  bool     `yaml:"lower_ranking_limit_0"`
	RankingBinLabels    []string `yaml:"ranking_bin_labels"`
}

type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Params converts the run section into pipeline parameters. Validation of
// the values happens in pipeline.New.
func (r RunConfig) Params() pipeline.Params {
	p := pipeline.DefaultParams()
	p.Scoring.Range = r.ScoreRange
	p.Scoring.FilterPolicy = scoring.FilterPolicy(r.FilterPolicy)
	p.Scoring.MissingPolicy = scoring.MissingPolicy(r.MissingPolicy)
	p.Scoring.Decimals = r.DecimalsInScores

	p.Modes = r.RatingModes
	p.AHP.Method = ahp.Method(r.Method)
	p.AHP.ReciprocalTolerance = r.ReciprocalTolerance
	p.AHP.ConsistencyThreshold = r.ConsistencyThreshold

	p.Ranking = ranking.Options{
		Renormalize: r.Renormalize,
		Bins: ranking.Bins{
			Count:          r.NumberOfRankingBins,
			Labels:         append([]string(nil), r.RankingBinLabels...),
			LowerLimitZero: r.LowerRankingLimit0,
		},
	}
	return p
}

var ErrUnknownParameter = errors.New("unknown run parameter")

// Set overrides one run parameter by its workbook/yaml key.
func (r *RunConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "min_score":
		r.ScoreRange.Min, err = strconv.ParseFloat(value, 64)
	case "max_score":
		r.ScoreRange.Max, err = strconv.ParseFloat(value, 64)
	case "filter_policy":
		r.FilterPolicy = value
	case "missing_policy":
		r.MissingPolicy = value
	case "decimals_in_scores":
		r.DecimalsInScores, err = strconv.Atoi(value)
	case "stakeholder_rating_mode":
		r.RatingModes.Stakeholder = ahp.Mode(value)
	case "group_rating_mode":
		r.RatingModes.Group = ahp.Mode(value)
	case "characteristic_rating_mode":
		r.RatingModes.Characteristic = ahp.Mode(value)
	case "method":
		r.Method = value
	case "reciprocal_tolerance":
		r.ReciprocalTolerance, err = strconv.ParseFloat(value, 64)
	case "consistency_threshold":
		r.ConsistencyThreshold, err = strconv.ParseFloat(value, 64)
	case "renormalize":
		r.Renormalize, err = strconv.ParseBool(value)
	case "number_of_ranking_bins":
		r.NumberOfRankingBins, err = strconv.Atoi(value)
	case "lower_ranking_limit_0":
		r.LowerRankingLimit0, err = parseBool(value)
	case "ranking_bin_labels":
		r.RankingBinLabels = splitList(value)
	default:
		return fmt.Errorf("%w %q", ErrUnknownParameter, key)
	}
	if err != nil {
		return fmt.Errorf("run parameter %s: %w", key, err)
	}
	return nil
}

// Apply sets every run parameter found in params, as read from a workbook.
// Keys that name no run parameter are skipped and returned sorted.
func (r *RunConfig) Apply(params map[string]string) ([]string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var skipped []string
	for _, k := range keys {
		err := r.Set(k, params[k])
		if errors.Is(err, ErrUnknownParameter) {
			skipped = append(skipped, k)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return skipped, nil
}

// Set overrides one output parameter. It reports false for unknown keys.
func (o *OutputConfig) Set(key, value string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "output_path":
		o.Path = strings.TrimSpace(value)
	case "version":
		o.Version = strings.TrimSpace(value)
	default:
		return false
	}
	return true
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// splitList accepts "a, b, c" and the python-style "['a', 'b', 'c']".
func splitList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8600,
			MetricsPort: 8601,
			RateLimit:   120,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Output: OutputConfig{
			Path:    "results",
			Version: "v1",
			Write:   true,
		},
		Run: RunConfig{
			ScoreRange:          scoring.Range{Min: 0, Max: 1},
			FilterPolicy:        string(scoring.FilterClip),
			MissingPolicy:       string(scoring.MissingExclude),
			DecimalsInScores:    -1,
			RatingModes:         ahp.PairwiseModes(),
			Method:              string(ahp.MethodColumnAverage),
			ReciprocalTolerance: 0.01,
			Renormalize:         true,
			NumberOfRankingBins: 3,
			LowerRankingLimit0:  false,
			RankingBinLabels:    append([]string(nil), ranking.DefaultBinLabels...),
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runEnv maps environment variables to run parameter keys.
var runEnv = map[string]string{
	"PRIORITIZER_FILTER_POLICY":          "filter_policy",
	"PRIORITIZER_MISSING_POLICY":         "missing_policy",
	"PRIORITIZER_METHOD":                 "method",
	"PRIORITIZER_CONSISTENCY_THRESHOLD":  "consistency_threshold",
	"PRIORITIZER_RENORMALIZE":            "renormalize",
	"PRIORITIZER_NUMBER_OF_RANKING_BINS": "number_of_ranking_bins",
	"PRIORITIZER_LOWER_RANKING_LIMIT_0":  "lower_ranking_limit_0",
	"PRIORITIZER_RANKING_BIN_LABELS":     "ranking_bin_labels",
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PRIORITIZER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PRIORITIZER_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PRIORITIZER_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PRIORITIZER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PRIORITIZER_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PRIORITIZER_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("PRIORITIZER_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("PRIORITIZER_VERSION"); v != "" {
		cfg.Output.Version = v
	}
	if v := os.Getenv("PRIORITIZER_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Concurrency = n
		}
	}
	if v := os.Getenv("PRIORITIZER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	for env, key := range runEnv {
		if v := os.Getenv(env); v != "" {
			if err := cfg.Run.Set(key, v); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
	}
	return nil
}
