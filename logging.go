package ecs

import (
	"fmt"

	"go.uber.org/zap"
)

// zapInt, zapUint64, zapError, zapString, zapStringer are thin aliases kept
// local to this package so call sites read as plain field constructors
// without sprinkling zap.* everywhere component code touches logging.
func zapInt(key string, v int) zap.Field      { return zap.Int(key, v) }
func zapUint64(key string, v uint64) zap.Field { return zap.Uint64(key, v) }
func zapError(err error) zap.Field             { return zap.Error(err) }
func zapString(key, v string) zap.Field        { return zap.String(key, v) }
func zapStringer(key string, v fmt.Stringer) zap.Field {
	return zap.Stringer(key, v)
}
