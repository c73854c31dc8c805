//go:build !cgo || !hyperscan

package matcher

import (
	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/engine/portable"
)

// newBackend returns the pure-Go engine (no CGO required).
//
// For the native engine, build with CGO_ENABLED=1 and -tags=hyperscan.
func newBackend() engine.Backend {
	return portable.New()
}
