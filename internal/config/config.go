package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAMRELAY_"

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// If cmd is provided, flags explicitly set via CLI will not be overwritten.
// A missing config file is not an error; a malformed one is.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	if configPath := configPathOf(v); configPath != "" {
		tree, err := readTOML(configPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		for i := 0; i < v.NumField(); i++ {
			fieldType := t.Field(i)
			if tree == nil || changedFlags[fieldNameToFlag(fieldType.Name)] {
				continue
			}
			if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" {
				if value := getNestedValue(tree, tomlPath); value != nil {
					setFieldValue(v.Field(i), value)
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changedFlags[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				setFieldValueFromString(v.Field(i), envValue)
			}
		}
	}

	return nil
}

// ApplyDefaults fills every field carrying a default tag. Used by
// subcommands that build Options without the humacli flag layer.
func ApplyDefaults(opts any) {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if def, ok := t.Field(i).Tag.Lookup("default"); ok {
			setFieldValueFromString(v.Field(i), def)
		}
	}
}

func configPathOf(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	return tree, nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Acronyms stay together to match the humacli flag names.
// Example: "LoggingLevel" -> "logging-level", "NATSURL" -> "natsurl",
// "WebcamStreamURL" -> "webcam-stream-url".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	result := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				result = append(result, '-')
			}
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := value.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		if arr, ok := value.([]any); ok {
			slice := make([]string, len(arr))
			for i, item := range arr {
				if s, strOk := item.(string); strOk {
					slice[i] = s
				}
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// LoadLoggingConfig loads the [logging] table from a TOML config file.
// Returns default config if file doesn't exist or can't be parsed.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var rawConfig struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil || rawConfig.Logging == nil {
		return cfg
	}

	for key, value := range rawConfig.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
