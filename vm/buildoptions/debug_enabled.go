//go:build lume_debug
// +build lume_debug

package buildoptions

const IsDebugMode = true
