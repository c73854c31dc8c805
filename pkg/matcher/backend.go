package matcher

import "github.com/praetorian-inc/hsmatch/pkg/engine"

// backend is the engine selected at build time; see backend_default.go and
// backend_hyperscan.go.
var backend engine.Backend = newBackend()

// Backend returns the engine backend in use.
func Backend() engine.Backend {
	return backend
}

// BackendName names the engine backend in use ("portable" or "hyperscan").
func BackendName() string {
	return backend.Name()
}
