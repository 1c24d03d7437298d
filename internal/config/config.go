// Package config loads sitwell's settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ayusman/sitwell/internal/capture"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/posture"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Env     string `validate:"oneof=development production test"`
	Addr    string `validate:"required"`
	DataDir string `validate:"required"`
	WebDir  string

	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogDir   string

	Posture  posture.Config
	Detector detector.Config
	Camera   capture.Config

	MonitorEnabled  bool
	MonitorInterval time.Duration `validate:"gt=0"`
	AlertCooldown   time.Duration `validate:"gte=0"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gte=0"`

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=1"`

	PluginDir   string
	TrayEnabled bool
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "sitwell.db")
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	dataDir := ".sitwell"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".sitwell")
	}

	return &Config{
		Env:             "development",
		Addr:            ":8080",
		DataDir:         dataDir,
		LogLevel:        "info",
		Posture:         posture.DefaultConfig(),
		Detector:        detector.DefaultConfig(),
		Camera:          capture.DefaultConfig(),
		MonitorInterval: 2 * time.Second,
		AlertCooldown:   5 * time.Minute,
		CacheTTL:        10 * time.Minute,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		PluginDir:       filepath.Join(dataDir, "plugins"),
	}
}

// Load reads an optional .env file from the working directory and then the environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, falling back to Default for unset variables.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("APP_ENV", &cfg.Env)
	r.str("APP_ADDR", &cfg.Addr)
	if r.str("SITWELL_DATA_DIR", &cfg.DataDir) {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}
	r.str("SITWELL_WEB_DIR", &cfg.WebDir)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.str("LOG_DIR", &cfg.LogDir)

	r.str("MODEL_PATH", &cfg.Detector.ModelPath)
	r.float("MODEL_CONFIDENCE", &cfg.Detector.Confidence)

	r.float("SHOULDER_BALANCE_THRESHOLD", &cfg.Posture.ShoulderBalanceThreshold)
	r.float("NECK_TILT_THRESHOLD", &cfg.Posture.NeckTiltThreshold)
	r.float("BACK_ANGLE_THRESHOLD", &cfg.Posture.BackAngleThreshold)
	r.float("SHOULDER_WEIGHT", &cfg.Posture.Weights.Shoulder)
	r.float("NECK_WEIGHT", &cfg.Posture.Weights.Neck)
	r.float("BACK_WEIGHT", &cfg.Posture.Weights.Back)
	r.float("MIN_KEYPOINT_CONFIDENCE", &cfg.Posture.MinConfidence)
	r.float("GOOD_POSTURE_CUTOFF", &cfg.Posture.GoodPostureCutoff)

	var profile, facing string
	if r.str("POSTURE_PROFILE", &profile) {
		p, err := posture.ParseProfile(profile)
		r.fail("POSTURE_PROFILE", err)
		cfg.Posture.Profile = p
	}
	if r.str("CAMERA_FACING", &facing) {
		f, err := posture.ParseFacing(facing)
		r.fail("CAMERA_FACING", err)
		cfg.Posture.Facing = f
	}

	r.int("CAMERA_ID", &cfg.Camera.DeviceID)
	r.bool("MONITOR_ENABLED", &cfg.MonitorEnabled)
	r.duration("MONITOR_INTERVAL", &cfg.MonitorInterval)
	r.duration("ALERT_COOLDOWN", &cfg.AlertCooldown)

	r.str("REDIS_ADDRESS", &cfg.RedisAddress)
	r.str("REDIS_PASSWORD", &cfg.RedisPassword)
	r.int("REDIS_DB", &cfg.RedisDB)
	r.duration("CACHE_TTL", &cfg.CacheTTL)

	r.float("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	r.int("RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	r.str("PLUGIN_DIR", &cfg.PluginDir)
	r.bool("TRAY_ENABLED", &cfg.TrayEnabled)

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(r.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the whole configuration, including the posture scoring parameters.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Posture.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		return fmt.Errorf("%w: MODEL_CONFIDENCE must be within [0, 1]", ErrInvalid)
	}
	return nil
}

// reader collects parse errors so Load can report every bad variable at once.
type reader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) fail(key string, err error) {
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %v", key, err))
	}
}

func (r *reader) str(key string, dst *string) bool {
	v, ok := r.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (r *reader) float(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(key, fmt.Errorf("%q is not a finite number", v))
		return
	}
	*dst = f
}

func (r *reader) int(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = n
}

func (r *reader) bool(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = b
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func (r *reader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = d
}
