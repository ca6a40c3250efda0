package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level TOML structure for the cameye server.
//
// Example:
//
//	conf_dir = "/etc/cameye"
//	run_dir = "/var/run/cameye"
//	log_dir = "/var/log/cameye"
//	media_dir = "/var/lib/cameye"
//	listen = "0.0.0.0"
//	port = 8765
//
//	[motion]
//	binary = "motion"
//	check_interval = "10s"
//
//	[[cameras]]
//	id = 1
//	name = "front door"
//	enabled = true
//	proto = "v4l2"
type Config struct {
	ConfDir  string `toml:"conf_dir" mapstructure:"conf_dir"`
	RunDir   string `toml:"run_dir" mapstructure:"run_dir"`
	LogDir   string `toml:"log_dir" mapstructure:"log_dir"`
	MediaDir string `toml:"media_dir" mapstructure:"media_dir"`

	Listen string `toml:"listen" mapstructure:"listen"`
	Port   int    `toml:"port" mapstructure:"port"`

	Motion  MotionConfig   `toml:"motion" mapstructure:"motion"`
	Log     LogConfig      `toml:"log" mapstructure:"log"`
	Cleanup CleanupConfig  `toml:"cleanup" mapstructure:"cleanup"`
	MJPG    MJPGConfig     `toml:"mjpg" mapstructure:"mjpg"`
	Tasks   TasksConfig    `toml:"tasks" mapstructure:"tasks"`
	Mounts  MountsConfig   `toml:"mounts" mapstructure:"mounts"`
	Cameras []CameraConfig `toml:"cameras" mapstructure:"cameras"`
}

type MotionConfig struct {
	Binary        string        `toml:"binary" mapstructure:"binary"`
	ConfigFile    string        `toml:"config_file" mapstructure:"config_file"`
	CheckInterval time.Duration `toml:"check_interval" mapstructure:"check_interval"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type CleanupConfig struct {
	// Interval 0 disables the sweep entirely.
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

type MJPGConfig struct {
	// ClientTimeout 0 disables the streaming-client garbage collector.
	ClientTimeout time.Duration `toml:"client_timeout" mapstructure:"client_timeout"`
}

type TasksConfig struct {
	// DBPath defaults to <run_dir>/tasks.db.
	DBPath       string        `toml:"db_path" mapstructure:"db_path"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

type MountsConfig struct {
	// RemountInterval drives the background remount loop when shares exist.
	RemountInterval time.Duration `toml:"remount_interval" mapstructure:"remount_interval"`
	Shares          []ShareConfig `toml:"shares" mapstructure:"shares"`
}

type ShareConfig struct {
	Server   string `toml:"server" mapstructure:"server"`
	Share    string `toml:"share" mapstructure:"share"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
}

type CameraConfig struct {
	ID           int    `toml:"id" mapstructure:"id"`
	Name         string `toml:"name" mapstructure:"name"`
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	Proto        string `toml:"proto" mapstructure:"proto"` // "v4l2" (local) or "netcam"
	TargetDir    string `toml:"target_dir" mapstructure:"target_dir"`
	PreserveDays int    `toml:"preserve_days" mapstructure:"preserve_days"`
}

// Load parses a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8765
	}
	if c.Motion.Binary == "" {
		c.Motion.Binary = "motion"
	}
	if c.Motion.CheckInterval == 0 {
		c.Motion.CheckInterval = 10 * time.Second
	}
	if c.Tasks.PollInterval == 0 {
		c.Tasks.PollInterval = time.Second
	}
	if c.Tasks.DBPath == "" && c.RunDir != "" {
		c.Tasks.DBPath = filepath.Join(c.RunDir, "tasks.db")
	}
	if c.Mounts.RemountInterval == 0 {
		c.Mounts.RemountInterval = 5 * time.Minute
	}
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Proto == "" {
			cam.Proto = "v4l2"
		}
		if cam.TargetDir == "" && c.MediaDir != "" {
			cam.TargetDir = filepath.Join(c.MediaDir, fmt.Sprintf("camera%d", cam.ID))
		}
	}
}

func (c *Config) validate() error {
	if c.RunDir == "" {
		return fmt.Errorf("run_dir must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	seen := make(map[int]struct{}, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID <= 0 {
			return fmt.Errorf("camera %q requires a positive id", cam.Name)
		}
		if _, dup := seen[cam.ID]; dup {
			return fmt.Errorf("duplicate camera id %d", cam.ID)
		}
		seen[cam.ID] = struct{}{}
		switch cam.Proto {
		case "v4l2", "netcam":
		default:
			return fmt.Errorf("camera %d: unknown proto %q", cam.ID, cam.Proto)
		}
	}
	for _, sh := range c.Mounts.Shares {
		if sh.Server == "" || sh.Share == "" {
			return fmt.Errorf("mount share requires server and share")
		}
	}
	return nil
}

// PidFilePath is the server's own pid file location.
func (c *Config) PidFilePath() string {
	return filepath.Join(c.RunDir, "cameye.pid")
}

// MotionPidFilePath is where the supervised motion daemon's pid is recorded.
func (c *Config) MotionPidFilePath() string {
	return filepath.Join(c.RunDir, "motion.pid")
}

// HTTPAddr is the listener bind address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen, c.Port)
}
