//go:build linux

package reactor

func runtimeSupportsFd() bool { return true }
