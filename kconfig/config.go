// Package kconfig loads the kernel's runtime configuration from the
// environment (optionally via a .env file), grounded on
// intelligencedev-manifold's internal/config.Load, generalized from that
// project's large multi-provider Config struct down to the handful of
// settings this kernel actually needs: which LLM provider/model/key to
// hand transport.NewLiteLLMTransport, the kernel's own tunables
// (state.Config), the desktop tool's work directory, and logging.
package kconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ctxmetab/kernel/state"
)

// Provider selects which litellm provider constructor NewTransport wires up.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Config is the kernel process's full set of recognized environment
// settings.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string

	WorkDir  string
	LogPath  string
	LogLevel string

	Kernel state.Config
}

// Load reads configuration from the environment, first loading a .env file
// if present (godotenv.Overload, matching the teacher's "local config wins"
// choice in internal/config/loader.go) without hard-failing when none
// exists.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		Kernel: state.DefaultConfig(),
	}

	cfg.Provider = Provider(firstNonEmpty(strings.ToLower(strings.TrimSpace(os.Getenv("KERNEL_LLM_PROVIDER"))), string(ProviderOpenAI)))
	cfg.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("KERNEL_LLM_MODEL")), "gpt-4.1")
	cfg.BaseURL = strings.TrimSpace(os.Getenv("KERNEL_LLM_BASE_URL"))

	switch cfg.Provider {
	case ProviderAnthropic:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_LLM_API_KEY"))
	default:
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("kconfig: no API key set for provider %q", cfg.Provider)
	}

	cfg.WorkDir = firstNonEmpty(strings.TrimSpace(os.Getenv("KERNEL_WORK_DIR")), "~/workspace/tools/computer_use")
	cfg.LogPath = strings.TrimSpace(os.Getenv("KERNEL_LOG_PATH"))
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("KERNEL_LOG_LEVEL")), "info")

	if v := strings.TrimSpace(os.Getenv("KERNEL_IMPORT_STAGE_TTL_CALLS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Kernel.ImportStageTTLCalls = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("KERNEL_IMPORT_CAP_CHARS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Kernel.ImportCapChars = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("KERNEL_MAX_LLM_CALLS_PER_RUN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Kernel.MaxLLMCallsPerRun = n
		}
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
