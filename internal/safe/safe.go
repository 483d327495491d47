package safe

import (
	"fmt"

	"github.com/pterm/pterm"
)

// BestEffort runs fn and returns its value. An error or a panic is logged and
// the fallback is returned instead, so callers never see a failure.
func BestEffort[T any](logger *pterm.Logger, op string, fallback T, fn func() (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCaller().Error("Recovered from panic", logger.Args("op", op, "panic", fmt.Sprint(r)))
			result = fallback
		}
	}()

	value, err := fn()
	if err != nil {
		logger.Warn("Operation failed, continuing with fallback", logger.Args("op", op, "error", err))
		return fallback
	}
	return value
}

// Go runs fn on a new goroutine with the same panic protection as BestEffort.
func Go(logger *pterm.Logger, op string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithCaller().Error("Recovered from panic", logger.Args("op", op, "panic", fmt.Sprint(r)))
			}
		}()
		fn()
	}()
}
