package shmop

import (
	"os"

	"github.com/messagemedia/shmop/pkg/logger"
)

// u32WrapBoundary is the largest uint32 value; validateValue treats
// values at or above it as wrapping and rewrites them to 0 rather than
// storing a truncated value.
const u32WrapBoundary = 4294967295

// validateValue checks v against the metric value contract: a value
// that fails any check is logged and rewritten to 0 rather than
// rejected outright.
func validateValue(v any, log logger.Logger, name string) uint32 {
	asFloat, isNumeric := toFloat64(v)
	if !isNumeric {
		log.Warnf("shmop: %q: value is not numeric, using 0", name)
		return 0
	}

	if asFloat != float64(int64(asFloat)) {
		log.Warnf("shmop: %q: value %v is not integer-valued, using 0", name, v)
		return 0
	}

	intValue := int64(asFloat)
	if intValue < 0 {
		log.Warnf("shmop: %q: value %d is negative, using 0", name, intValue)
		return 0
	}

	if intValue >= u32WrapBoundary {
		log.Infof("shmop: %q: wrapping value for %d, using 0", name, intValue)
		return 0
	}

	return uint32(intValue)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
