// Package config loads service configuration from environment variables and
// embedded static data.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed guidance.yaml
var guidanceYAML []byte

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig
	Detector DetectorConfig
	Verify   VerifyConfig
	Guidance GuidanceConfig
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// DetectorConfig configures the external face detection service.
type DetectorConfig struct {
	URL            string        // detection service base URL (e.g., http://localhost:8000)
	InputSize      int           // frame edge length sent to the detector (default 416)
	ScoreThreshold float64       // confidence floor for a candidate face (default 0.5)
	Timeout        time.Duration // per-request timeout (default 10s)
}

// VerifyConfig configures the hold-to-verify session protocol.
type VerifyConfig struct {
	HoldDuration   time.Duration // continuous detection required before matching (default 3s)
	DetectEvery    int           // run detection on every Nth frame (default 2)
	AcquireTimeout time.Duration // max wait for the first decodable frame (default 10s)
	SessionTTL     time.Duration // idle session lifetime before reaping (default 2m)
	TokenTTL       time.Duration // verification token lifetime (default 60s)
	CloseDelay     time.Duration // delay between success and auto-close (default 1500ms)
}

// GuidanceConfig is the escalation ladder of no-face hint messages.
type GuidanceConfig struct {
	Steps []GuidanceStep `yaml:"steps"`
}

// GuidanceStep is one rung of the ladder.
type GuidanceStep struct {
	AfterSeconds int    `yaml:"after_seconds"`
	Message      string `yaml:"message"`
}

// MessageFor returns the hint for the given time without a detection. The
// ladder only escalates wording; it never changes verification logic.
func (g *GuidanceConfig) MessageFor(elapsed time.Duration) string {
	msg := ""
	for _, step := range g.Steps {
		if elapsed >= time.Duration(step.AfterSeconds)*time.Second {
			msg = step.Message
		}
	}
	return msg
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration string.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// Load builds the configuration from the environment and embedded data.
func Load() *Config {
	var guidance GuidanceConfig
	if err := yaml.Unmarshal(guidanceYAML, &guidance); err != nil {
		// Embedded file, so this can only be a build-time mistake.
		panic("failed to unmarshal embedded guidance.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Detector: DetectorConfig{
			URL:            os.Getenv("DETECTOR_URL"),
			InputSize:      envInt("DETECTOR_INPUT_SIZE", 416),
			ScoreThreshold: envFloat("DETECTOR_SCORE_THRESHOLD", 0.5),
			Timeout:        envDuration("DETECTOR_TIMEOUT", 10*time.Second),
		},
		Verify: VerifyConfig{
			HoldDuration:   envDuration("VERIFY_HOLD_DURATION", 3*time.Second),
			DetectEvery:    envInt("VERIFY_DETECT_EVERY", 2),
			AcquireTimeout: envDuration("VERIFY_ACQUIRE_TIMEOUT", 10*time.Second),
			SessionTTL:     envDuration("VERIFY_SESSION_TTL", 2*time.Minute),
			TokenTTL:       envDuration("VERIFY_TOKEN_TTL", 60*time.Second),
			CloseDelay:     envDuration("VERIFY_CLOSE_DELAY", 1500*time.Millisecond),
		},
		Guidance: guidance,
	}
}
