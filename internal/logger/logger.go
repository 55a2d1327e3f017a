package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/ppp/pppctl/internal/constants"
)

// Initialize sets up the global slog logger based on the environment
func Initialize(env constants.Environment, level slog.Level) *slog.Logger {
	var handler slog.Handler

	if env == constants.Production {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:       level,
			TimeFormat:  time.TimeOnly,
			ReplaceAttr: replaceAttrForDev,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "env", env, "level", level)

	return logger
}

// replaceAttrForDev flattens map attributes into "k=v" pairs so the console
// output stays on one line.
func replaceAttrForDev(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	switch a.Value.Any().(type) {
	case map[string]string, map[string]any:
		return slog.String(a.Key, flattenMapAttr(a.Key, a.Value.Any()))
	default:
		return a
	}
}

func flattenMapAttr(prefix string, value any) string {
	var pairs []string
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch m := value.(type) {
	case map[string]string:
		for k, v := range m {
			pairs = append(pairs, join(k)+"="+v)
		}
	case map[string]any:
		for k, v := range m {
			switch v.(type) {
			case map[string]string, map[string]any:
				pairs = append(pairs, flattenMapAttr(join(k), v))
			default:
				pairs = append(pairs, fmt.Sprintf("%s=%v", join(k), v))
			}
		}
	default:
		return fmt.Sprint(value)
	}

	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}
