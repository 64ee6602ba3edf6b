package cfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mousecap/internal/cfg"
)

func TestDefault(t *testing.T) {
	profile := cfg.Default()
	if profile.LogLevel != "info" {
		t.Errorf("log_level: got %q, want %q", profile.LogLevel, "info")
	}
	c := profile.Capture
	if c.MotionThreshold != 50 {
		t.Errorf("motion_threshold: got %d, want 50", c.MotionThreshold)
	}
	if c.PollInterval != 50 {
		t.Errorf("poll_interval: got %d, want 50", c.PollInterval)
	}
	if c.RetryDelay != 500 {
		t.Errorf("retry_delay: got %d, want 500", c.RetryDelay)
	}
	if c.BackoffDelay != 3000 {
		t.Errorf("backoff_delay: got %d, want 3000", c.BackoffDelay)
	}
	if !profile.Bus.Enabled || profile.Bus.Name != "io.github.mousecap" {
		t.Errorf("bus: got %+v", profile.Bus)
	}
}

func TestMakeAndGetProfile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := cfg.MakeProfile("test"); err != nil {
		t.Fatal(err)
	}
	profile, err := cfg.GetProfile("test")
	if err != nil {
		t.Fatal(err)
	}
	if profile != cfg.Default() {
		t.Errorf("fresh profile differs from default: %+v", profile)
	}
	if err := cfg.MakeProfile("test"); err == nil {
		t.Error("overwriting an existing profile should fail")
	}
}

func TestPartialProfileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	content := "log_level = \"debug\"\n[capture]\nmotion_threshold = 75\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	profile, err := cfg.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if profile.LogLevel != "debug" {
		t.Errorf("log_level: got %q, want %q", profile.LogLevel, "debug")
	}
	if profile.Capture.MotionThreshold != 75 {
		t.Errorf("motion_threshold: got %d, want 75", profile.Capture.MotionThreshold)
	}
	// Everything unset falls back to the defaults.
	if profile.Capture.PollInterval != 50 {
		t.Errorf("poll_interval: got %d, want 50", profile.Capture.PollInterval)
	}
}

func TestInvalidProfile(t *testing.T) {
	cases := map[string]string{
		"bad toml":           "log_level = [\n",
		"negative threshold": "[capture]\nmotion_threshold = -1\n",
		"zero poll":          "[capture]\npoll_interval = 0\n",
		"blank bus name":     "[bus]\nenabled = true\nname = \"\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := cfg.FromFile(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("log_level = \"info\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	watcher, err := cfg.Watch(path)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	content := "[capture]\nmotion_threshold = 75\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	// Truncate-then-write can fire twice, so drain until the final
	// content shows up.
	deadline := time.After(2 * time.Second)
	for updated := false; !updated; {
		select {
		case profile := <-watcher.Updates:
			updated = profile.Capture.MotionThreshold == 75
		case <-deadline:
			t.Fatal("no update received")
		}
	}

	// A broken edit is reported but never delivered as an update.
	if err := os.WriteFile(path, []byte("[capture]\nmotion_threshold = -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	deadline = time.After(2 * time.Second)
	for {
		select {
		case <-watcher.Errors:
			return
		case profile := <-watcher.Updates:
			if profile.Capture.MotionThreshold < 0 {
				t.Fatalf("invalid profile delivered: %+v", profile)
			}
		case <-deadline:
			t.Fatal("no error received")
		}
	}
}
