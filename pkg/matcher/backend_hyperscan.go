//go:build cgo && hyperscan

package matcher

import (
	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/engine/hyperscan"
)

// newBackend returns the Hyperscan/Vectorscan engine.
// This file is only compiled when CGO is enabled and the "hyperscan" build
// tag is specified.
func newBackend() engine.Backend {
	return hyperscan.New()
}
