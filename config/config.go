// Package config loads and persists user settings: the OpenAI API key,
// the model, and the token encoding. Settings live in a per-user config
// file and may be overridden through CODESUM_* environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName        = "codesum"
	configFilename = "settings"
	configType     = "yaml"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
	// DefaultTokenEncoding is the tiktoken table for token counts.
	DefaultTokenEncoding = "cl100k_base"
)

// Settings holds the user-level configuration.
type Settings struct {
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	LLMModel      string `mapstructure:"llm_model"`
	TokenEncoding string `mapstructure:"token_encoding"`
}

// Enabled reports whether AI features can be used.
func (s Settings) Enabled() bool {
	return s.OpenAIAPIKey != ""
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// Load reads settings from the default per-user location.
func Load() (Settings, error) {
	dir, err := Dir()
	if err != nil {
		return Settings{}, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads settings from dir. A missing config file yields defaults;
// CODESUM_OPENAI_API_KEY, CODESUM_LLM_MODEL, and CODESUM_TOKEN_ENCODING
// override file values.
func LoadFrom(dir string) (Settings, error) {
	v := viper.New()
	v.SetConfigName(configFilename)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetEnvPrefix("CODESUM")
	v.AutomaticEnv()
	v.SetDefault("openai_api_key", "")
	v.SetDefault("llm_model", DefaultModel)
	v.SetDefault("token_encoding", DefaultTokenEncoding)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.LLMModel == "" {
		s.LLMModel = DefaultModel
	}
	if s.TokenEncoding == "" {
		s.TokenEncoding = DefaultTokenEncoding
	}
	return s, nil
}

// Save writes settings to the default per-user location.
func Save(s Settings) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return SaveTo(dir, s)
}

// SaveTo writes settings to dir, creating it as needed.
func SaveTo(dir string, s Settings) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("openai_api_key", s.OpenAIAPIKey)
	v.Set("llm_model", orDefault(s.LLMModel, DefaultModel))
	v.Set("token_encoding", orDefault(s.TokenEncoding, DefaultTokenEncoding))

	path := filepath.Join(dir, configFilename+"."+configType)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ConfigureInteractive runs the setup wizard on the given streams: it
// shows the current values and lets the user replace or keep each one.
func ConfigureInteractive(in io.Reader, out io.Writer) error {
	current, err := Load()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(in)

	keyState := "not set"
	if current.OpenAIAPIKey != "" {
		keyState = "set (" + maskKey(current.OpenAIAPIKey) + ")"
	}
	fmt.Fprintf(out, "OpenAI API key is %s.\n", keyState)
	fmt.Fprint(out, "Enter new API key (leave blank to keep, '-' to clear): ")
	if answer, ok := readLine(reader); ok {
		switch answer {
		case "":
		case "-":
			current.OpenAIAPIKey = ""
		default:
			current.OpenAIAPIKey = answer
		}
	}

	fmt.Fprintf(out, "Model is %q.\n", current.LLMModel)
	fmt.Fprint(out, "Enter new model (leave blank to keep): ")
	if answer, ok := readLine(reader); ok && answer != "" {
		current.LLMModel = answer
	}

	if err := Save(current); err != nil {
		return err
	}
	fmt.Fprintln(out, "Configuration saved.")
	return nil
}

func readLine(r *bufio.Reader) (string, bool) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// maskKey shows only the key's tail, enough to recognize it.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
