//go:build !unix && !windows

package fsops

func isGone(error) bool   { return false }
func isDenied(error) bool { return false }
