//go:build !cgo || !aom
// +build !cgo !aom

package av1

// Without libaom nothing is registered, and selecting AV1 fails at startup
// with a "backend not available" error.
const available = false
