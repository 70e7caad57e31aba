package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	StringField string   `toml:"test.string_field" env:"STRING_FIELD" default:"fallback"`
	BoolField   bool     `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"INT_FIELD" default:"7"`
	FloatField  float64  `toml:"test.float_field" env:"FLOAT_FIELD" default:"80"`
	SliceField  []string `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.deep.value" env:"NESTED_VALUE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camrelay.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 92.5
slice_field = ["item1", "item2"]

[nested.deep]
value = "nested value"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.StringField != "hello world" {
		t.Errorf("StringField = %q, want %q", opts.StringField, "hello world")
	}
	if !opts.BoolField {
		t.Error("BoolField = false, want true")
	}
	if opts.IntField != 42 {
		t.Errorf("IntField = %d, want 42", opts.IntField)
	}
	if opts.FloatField != 92.5 {
		t.Errorf("FloatField = %v, want 92.5", opts.FloatField)
	}
	if want := []string{"item1", "item2"}; !reflect.DeepEqual(opts.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", opts.SliceField, want)
	}
	if opts.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want %q", opts.NestedString, "nested value")
	}
}

func TestLoadConfigIntegerIntoFloat(t *testing.T) {
	path := writeConfig(t, "[test]\nfloat_field = 75\n")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.FloatField != 75 {
		t.Errorf("FloatField = %v, want 75", opts.FloatField)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml value"
int_field = 100
`)
	t.Setenv("CAMRELAY_STRING_FIELD", "env override")
	t.Setenv("CAMRELAY_FLOAT_FIELD", "50.5")
	t.Setenv("CAMRELAY_SLICE_FIELD", " a , b ")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.StringField != "env override" {
		t.Errorf("StringField = %q, want env override", opts.StringField)
	}
	if opts.IntField != 100 {
		t.Errorf("IntField = %d, want 100 from TOML", opts.IntField)
	}
	if opts.FloatField != 50.5 {
		t.Errorf("FloatField = %v, want 50.5", opts.FloatField)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(opts.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", opts.SliceField, want)
	}
}

func TestLoadConfigIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("STRING_FIELD", "wrong")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.StringField != "" {
		t.Errorf("StringField = %q, want empty", opts.StringField)
	}
}

func TestLoadConfigCLIFlagWins(t *testing.T) {
	path := writeConfig(t, "[test]\nint_field = 100\n")
	t.Setenv("CAMRELAY_INT_FIELD", "200")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.IntField, "int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "300"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.IntField != 300 {
		t.Errorf("IntField = %d, want 300 from flag", opts.IntField)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[test\ninvalid toml syntax\n")

	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := &testOptions{}
	ApplyDefaults(opts)

	if opts.StringField != "fallback" || opts.IntField != 7 || opts.FloatField != 80 {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.BoolField {
		t.Error("BoolField has no default and should stay false")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := &Options{}
	ApplyDefaults(opts)

	if opts.StreamRelayHost != "127.0.0.1" {
		t.Errorf("StreamRelayHost = %q", opts.StreamRelayHost)
	}
	if opts.SupervisorNice != 10 || opts.SupervisorGrace != 10 || opts.SupervisorStopTimeout != 5 {
		t.Errorf("supervisor defaults = %d/%d/%d", opts.SupervisorNice, opts.SupervisorGrace, opts.SupervisorStopTimeout)
	}
	if opts.WatchdogInterval != 20 || opts.WatchdogMaxPercent != 80 {
		t.Errorf("watchdog defaults = %d/%v", opts.WatchdogInterval, opts.WatchdogMaxPercent)
	}
	if opts.ProbeMaxAttempts != 20 || opts.EncoderTrialTimeout != 20 {
		t.Errorf("probe defaults = %d/%d", opts.ProbeMaxAttempts, opts.EncoderTrialTimeout)
	}
	if got := opts.LockPath(); got != filepath.Join(os.TempDir(), "camrelay-webcam.lock") {
		t.Errorf("LockPath() = %q", got)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{"value": "nested_value"},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"root.child", nil},
		{"level1.nonexistent", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.expected {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":                 "port",
		"LoggingLevel":         "logging-level",
		"WebcamForceStreamURL": "webcam-force-stream-url",
		"NATSEmbedded":         "nats-embedded",
		"NATSURL":              "natsurl",
		"FfmpegDataDir":        "ffmpeg-data-dir",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfigModules(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
supervisor = "debug"
ffmpeg = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("global = %s/%s", cfg.Level, cfg.Format)
	}
	if cfg.Modules["supervisor"] != "debug" || cfg.Modules["ffmpeg"] != "error" {
		t.Errorf("modules = %v", cfg.Modules)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("default = %+v", def)
	}
}

func TestLoadWebcam(t *testing.T) {
	path := writeConfig(t, `
[webcam]
snapshot_url = "http://127.0.0.1:8080/?action=snapshot"
stream_url = "http://127.0.0.1:8080/?action=stream"

[stream]
pro = true
`)

	got, err := LoadWebcam(path)
	if err != nil {
		t.Fatalf("LoadWebcam failed: %v", err)
	}

	want := Webcam{
		SnapshotURL:    "http://127.0.0.1:8080/?action=snapshot",
		StreamURL:      "http://127.0.0.1:8080/?action=stream",
		ForceStreamURL: true,
		Pro:            true,
		RelayHost:      "127.0.0.1",
	}
	if got != want {
		t.Errorf("LoadWebcam = %+v, want %+v", got, want)
	}
	if got.Changed(want) {
		t.Error("identical settings reported as changed")
	}

	want.ForceStreamURL = false
	if !got.Changed(want) {
		t.Error("force_stream_url change not detected")
	}
}

func TestLoadWebcamMissingFile(t *testing.T) {
	if _, err := LoadWebcam(filepath.Join(t.TempDir(), "gone.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
