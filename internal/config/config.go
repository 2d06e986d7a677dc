// Package config loads aria's configuration from TOML files.
package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Playback PlaybackConfig `koanf:"playback"`
	Library  LibraryConfig  `koanf:"library"`
	Download DownloadConfig `koanf:"download"`
}

// PlaybackConfig holds everything the playback engine recognizes at
// construction time.
type PlaybackConfig struct {
	PreferredBackend  string   `koanf:"preferred_backend"` // "native" or "framework"
	AllowFallback     *bool    `koanf:"allow_fallback"`    // default: true
	AudioOutput       string   `koanf:"audio_output"`      // platform sink name for the native engine
	CacheMs           int      `koanf:"cache_ms"`          // prebuffer size (default: 100)
	Quiet             bool     `koanf:"quiet"`             // suppress native engine logs
	MaxSeeksPerSecond int      `koanf:"max_seeks_per_second"` // seek rate limit (default: 5)
	PollIntervalMs    int      `koanf:"poll_interval_ms"`     // position poll tick (default: 100)
	MaxRetryAttempts  int      `koanf:"max_retry_attempts"`   // recovery retries (default: 3)
	RetryDelayMs      int      `koanf:"retry_delay_ms"`       // delay between retries (default: 500)
	AutoRecover       *bool    `koanf:"auto_recover"`         // default: true
	StopForgetsTrack  bool     `koanf:"stop_forgets_track"`   // default: false, keep track for repeat-one
	TranscodeExts     []string `koanf:"transcode_exts"`       // default: .m4a, .ogg, .flac
}

// LibraryConfig holds catalog and file-organization settings.
type LibraryConfig struct {
	Path            string `koanf:"path"`             // database file, empty means XDG data dir
	MusicFolder     string `koanf:"music_folder"`     // organized library root
	FolderStructure string `koanf:"folder_structure"` // "artist/album", "artist/year/album", "album"
	CopyFiles       *bool  `koanf:"copy_files"`       // default: true, false moves imports
}

// DownloadConfig holds YouTube download settings.
type DownloadConfig struct {
	YtDlpPath string `koanf:"yt_dlp_path"` // default: "yt-dlp" from PATH
	Verbose   bool   `koanf:"verbose"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	cfg.Library.Path = expandPath(cfg.Library.Path)
	cfg.Library.MusicFolder = expandPath(cfg.Library.MusicFolder)

	return cfg, nil
}

func (c *Config) applyDefaults() {
	p := &c.Playback
	if p.PreferredBackend == "" {
		p.PreferredBackend = "native"
	}
	if p.CacheMs <= 0 {
		p.CacheMs = 100
	}
	if p.MaxSeeksPerSecond <= 0 {
		p.MaxSeeksPerSecond = 5
	}
	if p.PollIntervalMs <= 0 {
		p.PollIntervalMs = 100
	}
	if p.MaxRetryAttempts <= 0 {
		p.MaxRetryAttempts = 3
	}
	if p.RetryDelayMs <= 0 {
		p.RetryDelayMs = 500
	}
	if len(p.TranscodeExts) == 0 {
		p.TranscodeExts = []string{".m4a", ".ogg", ".flac"}
	}

	if c.Library.FolderStructure == "" {
		c.Library.FolderStructure = "artist/album"
	}
	if c.Download.YtDlpPath == "" {
		c.Download.YtDlpPath = "yt-dlp"
	}
}

// AllowFallback reports whether backend fallback is enabled (default true).
func (c *Config) AllowFallback() bool {
	if c.Playback.AllowFallback == nil {
		return true
	}
	return *c.Playback.AllowFallback
}

// AutoRecover reports whether playback error recovery is enabled (default true).
func (c *Config) AutoRecover() bool {
	if c.Playback.AutoRecover == nil {
		return true
	}
	return *c.Playback.AutoRecover
}

// CopyFiles reports whether imports copy files into the library tree
// (default true; false moves them).
func (c *Config) CopyFiles() bool {
	if c.Library.CopyFiles == nil {
		return true
	}
	return *c.Library.CopyFiles
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/aria/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aria", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
