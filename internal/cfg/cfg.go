// Package cfg allows for reading the user's configuration.
package cfg

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfig []byte

// Capture contains the tunables of the pointer watcher.
type Capture struct {
	// The pointer travel, in pixels, at which motion counts as the
	// user leaving the text field. Applied to each axis on its own.
	MotionThreshold int `toml:"motion_threshold"`

	PollInterval int `toml:"poll_interval"` // Event poll cadence (ms)
	RetryDelay   int `toml:"retry_delay"`   // Contended grab retry (ms)
	BackoffDelay int `toml:"backoff_delay"` // Wait after a dropped stale grab (ms)
}

// Bus contains the session bus settings.
type Bus struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
}

// Profile contains an entire configuration profile.
type Profile struct {
	LogLevel string  `toml:"log_level"`
	Capture  Capture `toml:"capture"`
	Bus      Bus     `toml:"bus"`
}

// Default returns the built-in configuration profile.
func Default() Profile {
	var profile Profile
	if err := toml.Unmarshal(defaultConfig, &profile); err != nil {
		// The embedded profile is part of the build; it can't fail to
		// parse without the tests catching it.
		panic(err)
	}
	return profile
}

// GetDirectory returns the path to the user's configuration directory.
func GetDirectory() (string, error) {
	// UserConfigDir checks $XDG_CONFIG_HOME and falls back to
	// $HOME/.config, so no special casing is needed here.
	xdgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgDir, "mousecap"), nil
}

// GetPath returns the path to the named configuration profile.
func GetPath(name string) (string, error) {
	dir, err := GetDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".toml"), nil
}

// GetProfile returns a parsed configuration profile.
func GetProfile(name string) (Profile, error) {
	path, err := GetPath(name)
	if err != nil {
		return Profile{}, err
	}
	return FromFile(path)
}

// FromFile reads and validates the profile at the given path.
func FromFile(path string) (Profile, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	profile := Default()
	if err = toml.Unmarshal(file, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse config: %w", err)
	}
	if err = profile.validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// MakeProfile makes a new configuration profile with the given name
// and the default configuration.
func MakeProfile(name string) error {
	dir, err := GetDirectory()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := GetPath(name)
	if err != nil {
		return err
	}
	if _, err = os.Stat(path); err == nil {
		return fmt.Errorf("profile %q already exists", name)
	}
	return os.WriteFile(path, defaultConfig, 0644)
}

func (p *Profile) validate() error {
	if p.Capture.MotionThreshold <= 0 {
		return errors.New("motion_threshold must be positive")
	}
	if p.Capture.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if p.Capture.RetryDelay <= 0 {
		return errors.New("retry_delay must be positive")
	}
	if p.Capture.BackoffDelay <= 0 {
		return errors.New("backoff_delay must be positive")
	}
	if p.Bus.Enabled && p.Bus.Name == "" {
		return errors.New("bus name must not be blank")
	}
	return nil
}
