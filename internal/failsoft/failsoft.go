// Package failsoft wraps boundary calls so that a failure becomes an absent result
// plus one log line instead of an error the caller has to branch on.
package failsoft

import (
	"go.uber.org/zap"
)

// Do runs fn. On error it logs msg with the given fields and the error, and returns
// the zero value and false.
func Do[T any](logger *zap.Logger, msg string, fn func() (T, error), fields ...zap.Field) (T, bool) {
	v, err := fn()
	if err != nil {
		var zero T
		if logger != nil {
			logger.Warn(msg, append(fields, zap.Error(err))...)
		}
		return zero, false
	}
	return v, true
}
