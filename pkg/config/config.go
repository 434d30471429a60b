// package config stores user settings for ssoswitch, such as the
// default IAM Identity Center portal to refresh profiles from.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/common-fate/ssoswitch/internal/build"
)

const (
	// permission for user to read/write.
	USER_READ_WRITE_PERM = 0644
)

const (
	// permission for user to read/write/execute.
	USER_READ_WRITE_EXECUTE_PERM = 0700
)

const (
	DefaultSSORegion      = "us-east-1"
	DefaultRegion         = "us-east-1"
	DefaultProfileOutput  = "text"
	DefaultPickerPageSize = 15
)

type Config struct {
	// DefaultSSOStartURL is used for --update when --sso_start_url is not given.
	DefaultSSOStartURL string `toml:",omitempty"`
	DefaultSSORegion   string `toml:",omitempty"`
	// DefaultRegion is written as the region of generated profiles.
	DefaultRegion string `toml:",omitempty"`
	// ProfileOutput is written as the output format of generated profiles.
	// Set to an empty string to leave generated profiles without one.
	ProfileOutput string
	// used to override the default browser when opening the device login page
	CustomSSOBrowserPath string `toml:",omitempty"`
	PickerPageSize       int    `toml:",omitempty"`
}

// NewDefaultConfig returns a config with the built-in defaults populated
func NewDefaultConfig() Config {
	return Config{
		DefaultSSORegion: DefaultSSORegion,
		DefaultRegion:    DefaultRegion,
		ProfileOutput:    DefaultProfileOutput,
		PickerPageSize:   DefaultPickerPageSize,
	}
}

func ConfigFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(home, build.ConfigFolderName)
	if xdgConfigDir := os.Getenv("XDG_CONFIG_HOME"); !pathExists(configDir) && xdgConfigDir != "" {
		configDir = filepath.Join(xdgConfigDir, build.BinaryName)
	}

	return configDir, nil
}

func ConfigFilePath() (string, error) {
	folder, err := ConfigFolder()
	if err != nil {
		return "", err
	}
	return filepath.Join(folder, "config"), nil
}

// pathExists checks if a given file exists and returns true or false
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads the settings file. A missing or invalid file yields the defaults.
func Load() (*Config, error) {
	configFilePath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configFilePath)
}

func LoadFrom(configFilePath string) (*Config, error) {
	c := NewDefaultConfig()

	file, err := os.Open(configFilePath)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening settings file %s", configFilePath)
	}
	defer file.Close()

	_, err = toml.NewDecoder(file).Decode(&c)
	if err != nil {
		// an unreadable settings file should not stop a login
		d := NewDefaultConfig()
		return &d, nil
	}
	c.fillDefaults()
	return &c, nil
}

func (c *Config) fillDefaults() {
	if c.DefaultSSORegion == "" {
		c.DefaultSSORegion = DefaultSSORegion
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = DefaultRegion
	}
	if c.PickerPageSize <= 0 {
		c.PickerPageSize = DefaultPickerPageSize
	}
}

func (c *Config) SaveTo(configFilePath string) error {
	if err := os.MkdirAll(filepath.Dir(configFilePath), USER_READ_WRITE_EXECUTE_PERM); err != nil {
		return err
	}
	file, err := os.OpenFile(configFilePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, USER_READ_WRITE_PERM)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(c)
}
