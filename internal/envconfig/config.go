// Package envconfig reads gpttok settings from the environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/born-ml/gpttok/internal/logutil"
)

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// LogLevel returns the log level selected by GPTTOK_DEBUG: unset or false is
// INFO, true or 1 is DEBUG, 2 and above is TRACE.
func LogLevel() slog.Level {
	s := clean("GPTTOK_DEBUG")
	if s == "" {
		return slog.LevelInfo
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 2 {
		return logutil.LevelTrace
	}
	return slog.LevelDebug
}

// Vocab is the vocabulary path or encoding name set by GPTTOK_VOCAB. Defaults
// to the bundled GPT-2 encoding.
func Vocab() string {
	if s := clean("GPTTOK_VOCAB"); s != "" {
		return s
	}
	return "gpt2"
}

// CacheSize is the token cache size set by GPTTOK_CACHE_SIZE: 0 keeps every
// entry, a positive value bounds the cache, a negative value disables it.
func CacheSize() int {
	return Int("GPTTOK_CACHE_SIZE", 0)()
}

// NumParallel is the number of workers used for batch encoding, set by
// GPTTOK_NUM_PARALLEL. Defaults to the number of CPUs.
func NumParallel() int {
	n := Int("GPTTOK_NUM_PARALLEL", runtime.NumCPU())()
	if n <= 0 {
		slog.Error("invalid setting, must be greater than zero", "GPTTOK_NUM_PARALLEL", n)
		return runtime.NumCPU()
	}
	return n
}

// Int returns a getter for an integer variable with a default.
func Int(key string, defaultValue int) func() int {
	return func() int {
		if s := clean(key); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				slog.Error("invalid setting, ignoring", key, s, "error", err)
				return defaultValue
			}
			return n
		}
		return defaultValue
	}
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GPTTOK_DEBUG":        {"GPTTOK_DEBUG", LogLevel(), "Show additional debug information (e.g. GPTTOK_DEBUG=1, 2 for trace)"},
		"GPTTOK_VOCAB":        {"GPTTOK_VOCAB", Vocab(), "Vocabulary directory, tokenizer.json, .gguf file or encoding name (default \"gpt2\")"},
		"GPTTOK_CACHE_SIZE":   {"GPTTOK_CACHE_SIZE", CacheSize(), "Token cache entries: 0 unbounded, <0 disabled (default 0)"},
		"GPTTOK_NUM_PARALLEL": {"GPTTOK_NUM_PARALLEL", NumParallel(), "Workers used by batch encoding (default number of CPUs)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
