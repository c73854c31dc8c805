package matcher

import (
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// ExpressionInfo analyzes a single expression without building a database.
// A nil flags means no flags.
func ExpressionInfo(expression string, flags types.Flags) (*types.ExprInfo, error) {
	info, err := backend.ExpressionInfo(expression, types.BitsOf(flags))
	if err != nil {
		return nil, fmt.Errorf("expression info: %w", err)
	}
	return info, nil
}

// CurrentPlatform describes the host CPU as the engine sees it.
func CurrentPlatform() (types.Platform, error) {
	p, err := backend.PopulatePlatform()
	if err != nil {
		return types.Platform{}, fmt.Errorf("populate platform: %w", err)
	}
	return p, nil
}

// Version returns the engine version string.
func Version() string {
	return backend.Version()
}
