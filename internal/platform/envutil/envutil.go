package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// String returns the trimmed value of name, or def when unset or blank.
// When log is non-nil the lookup is recorded at debug level.
func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	if log != nil {
		log.Debug("Environment variable found, using environment", "env_var", name)
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		debugUnparsable(log, name, v, def, err)
		return def
	}
	return i
}

func Float(name string, def float64, log *logger.Logger) float64 {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		debugUnparsable(log, name, v, def, err)
		return def
	}
	return f
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		debugUnparsable(log, name, v, def, nil)
		return def
	}
}

// Seconds reads an integer number of seconds. Non-positive values fall back to def.
func Seconds(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		debugUnparsable(log, name, v, def, err)
		return def
	}
	return time.Duration(secs) * time.Second
}

// Duration reads a Go duration string ("90s", "5m").
func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		debugUnparsable(log, name, v, def, err)
		return def
	}
	return d
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func debugDefault(log *logger.Logger, name string, def interface{}) {
	if log != nil {
		log.Debug("Environment variable not found, using default", "env_var", name, "default", def)
	}
}

func debugUnparsable(log *logger.Logger, name, raw string, def interface{}, err error) {
	if log == nil {
		return
	}
	fields := []interface{}{"env_var", name, "provided", raw, "default", def}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	log.Debug("Environment variable could not be parsed, using default", fields...)
}
