package obs

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger: JSON output in
// production, console encoding in development.
func NewLogger(environment string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
