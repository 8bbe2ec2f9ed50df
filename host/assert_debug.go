//go:build fsasync_debug

package host

const debugAssertions = true
