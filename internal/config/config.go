// Package config provides configuration management for the export service.
// Defaults are overlaid by an optional YAML file, then by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 5000
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".heimdex-export"
	DefaultMaxConcurrentJobs = 2
	DefaultQueueSize         = 64
	DefaultRenderConcurrency = 1
	DefaultMinFreeDiskBytes  = 512 * 1024 * 1024

	// Environment variable names
	EnvConfigFile        = "HEIMDEX_EXPORT_CONFIG"
	EnvHost              = "HEIMDEX_EXPORT_HOST"
	EnvPort              = "HEIMDEX_EXPORT_PORT"
	EnvLogLevel          = "HEIMDEX_EXPORT_LOG_LEVEL"
	EnvLogFile           = "HEIMDEX_EXPORT_LOG_FILE"
	EnvDataDir           = "HEIMDEX_EXPORT_DATA_DIR"
	EnvWorkDir           = "HEIMDEX_EXPORT_WORK_DIR"
	EnvFFmpegPath        = "HEIMDEX_EXPORT_FFMPEG"
	EnvFFprobePath       = "HEIMDEX_EXPORT_FFPROBE"
	EnvToolTimeout       = "HEIMDEX_EXPORT_TOOL_TIMEOUT"
	EnvMaxConcurrentJobs = "HEIMDEX_EXPORT_MAX_CONCURRENT_JOBS"
	EnvQueueSize         = "HEIMDEX_EXPORT_QUEUE_SIZE"
	EnvRenderConcurrency = "HEIMDEX_EXPORT_RENDER_CONCURRENCY"
	EnvMinFreeDiskBytes  = "HEIMDEX_EXPORT_MIN_FREE_DISK_BYTES"
	EnvAPIToken          = "HEIMDEX_EXPORT_API_TOKEN"
	EnvPersistJobs       = "HEIMDEX_EXPORT_PERSIST_JOBS"
	EnvAllowedOrigins    = "HEIMDEX_EXPORT_ALLOWED_ORIGINS"

	// Database filename
	DBFilename = "exports.db"
)

// Config defines the application configuration interface
type Config interface {
	Addr() string
	Port() int
	LogLevel() string
	LogFile() string
	DataDir() string
	WorkDir() string
	DBPath() string
	PersistJobs() bool
	FFmpegPath() string
	FFprobePath() string
	ToolTimeout() time.Duration
	MaxConcurrentJobs() int
	QueueSize() int
	RenderConcurrency() int
	MinFreeDiskBytes() uint64
	APIToken() string
	AllowedOrigins() []string
}

// fileConfig is the YAML layout. Fields left out of the file keep the
// values they had before decoding.
type fileConfig struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		APIToken       string   `yaml:"api_token"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	DataDir string `yaml:"data_dir"`
	WorkDir string `yaml:"work_dir"`

	Media struct {
		FFmpeg      string        `yaml:"ffmpeg"`
		FFprobe     string        `yaml:"ffprobe"`
		ToolTimeout time.Duration `yaml:"tool_timeout"`
	} `yaml:"media"`

	Jobs struct {
		MaxConcurrent     int    `yaml:"max_concurrent"`
		QueueSize         int    `yaml:"queue_size"`
		RenderConcurrency int    `yaml:"render_concurrency"`
		MinFreeDiskBytes  uint64 `yaml:"min_free_disk_bytes"`
		Persist           bool   `yaml:"persist"`
	} `yaml:"jobs"`
}

// EnvConfig holds the resolved configuration
type EnvConfig struct {
	file fileConfig
}

// New loads the YAML file named by HEIMDEX_EXPORT_CONFIG, if any, then
// applies environment overrides.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load is New with an explicit config file path. An empty path skips the file.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{file: defaults()}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg.file); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() fileConfig {
	var f fileConfig
	f.Server.Host = DefaultHost
	f.Server.Port = DefaultPort
	f.Log.Level = DefaultLogLevel
	f.DataDir = defaultDataDir()
	f.Jobs.MaxConcurrent = DefaultMaxConcurrentJobs
	f.Jobs.QueueSize = DefaultQueueSize
	f.Jobs.RenderConcurrency = DefaultRenderConcurrency
	f.Jobs.MinFreeDiskBytes = DefaultMinFreeDiskBytes
	f.Jobs.Persist = true
	return f
}

func (c *EnvConfig) applyEnv() error {
	f := &c.file

	setString(&f.Server.Host, EnvHost)
	setString(&f.Server.APIToken, EnvAPIToken)
	setString(&f.Log.Level, EnvLogLevel)
	setString(&f.Log.File, EnvLogFile)
	setString(&f.DataDir, EnvDataDir)
	setString(&f.WorkDir, EnvWorkDir)
	setString(&f.Media.FFmpeg, EnvFFmpegPath)
	setString(&f.Media.FFprobe, EnvFFprobePath)

	if err := setInt(&f.Server.Port, EnvPort); err != nil {
		return err
	}
	if err := setInt(&f.Jobs.MaxConcurrent, EnvMaxConcurrentJobs); err != nil {
		return err
	}
	if err := setInt(&f.Jobs.QueueSize, EnvQueueSize); err != nil {
		return err
	}
	if err := setInt(&f.Jobs.RenderConcurrency, EnvRenderConcurrency); err != nil {
		return err
	}

	if v := os.Getenv(EnvMinFreeDiskBytes); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMinFreeDiskBytes, err)
		}
		f.Jobs.MinFreeDiskBytes = n
	}

	if v := os.Getenv(EnvToolTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvToolTimeout, err)
		}
		f.Media.ToolTimeout = d
	}

	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		f.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				f.Server.AllowedOrigins = append(f.Server.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv(EnvPersistJobs); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPersistJobs, err)
		}
		f.Jobs.Persist = b
	}
	return nil
}

func (c *EnvConfig) validate() error {
	f := c.file
	if f.Server.Port < 1 || f.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", f.Server.Port)
	}
	if f.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max concurrent jobs %d: must be at least 1", f.Jobs.MaxConcurrent)
	}
	if f.Jobs.QueueSize < 0 {
		return fmt.Errorf("invalid queue size %d: must not be negative", f.Jobs.QueueSize)
	}
	if f.Jobs.RenderConcurrency < 1 {
		return fmt.Errorf("invalid render concurrency %d: must be at least 1", f.Jobs.RenderConcurrency)
	}
	if f.Media.ToolTimeout < 0 {
		return fmt.Errorf("invalid tool timeout %s: must not be negative", f.Media.ToolTimeout)
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env, err)
	}
	*dst = n
	return nil
}

// Addr returns host:port for the HTTP listener
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.file.Server.Host, c.file.Server.Port)
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.file.Server.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.file.Log.Level
}

// LogFile returns an optional file that receives a copy of the logs
func (c *EnvConfig) LogFile() string {
	return c.file.Log.File
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.file.DataDir
}

// WorkDir is where per-job clips and final exports are written
func (c *EnvConfig) WorkDir() string {
	if c.file.WorkDir != "" {
		return c.file.WorkDir
	}
	return filepath.Join(c.file.DataDir, "exports")
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.file.DataDir, DBFilename)
}

// PersistJobs selects the SQLite job store over the in-memory one
func (c *EnvConfig) PersistJobs() bool {
	return c.file.Jobs.Persist
}

func (c *EnvConfig) FFmpegPath() string {
	return c.file.Media.FFmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.file.Media.FFprobe
}

// ToolTimeout bounds each ffmpeg/ffprobe invocation; zero means no limit
func (c *EnvConfig) ToolTimeout() time.Duration {
	return c.file.Media.ToolTimeout
}

func (c *EnvConfig) MaxConcurrentJobs() int {
	return c.file.Jobs.MaxConcurrent
}

func (c *EnvConfig) QueueSize() int {
	return c.file.Jobs.QueueSize
}

func (c *EnvConfig) RenderConcurrency() int {
	return c.file.Jobs.RenderConcurrency
}

func (c *EnvConfig) MinFreeDiskBytes() uint64 {
	return c.file.Jobs.MinFreeDiskBytes
}

// APIToken is the optional bearer token; empty disables auth
func (c *EnvConfig) APIToken() string {
	return c.file.Server.APIToken
}

// AllowedOrigins are browser origins accepted in addition to loopback ones.
func (c *EnvConfig) AllowedOrigins() []string {
	return c.file.Server.AllowedOrigins
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
