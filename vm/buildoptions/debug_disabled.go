//go:build !lume_debug
// +build !lume_debug

package buildoptions

// IsDebugMode enables internal consistency panics in the compiler. These
// catch backend bugs (double register assignment, unallocated summaries)
// during development and are compiled out of release builds.
const IsDebugMode = false
