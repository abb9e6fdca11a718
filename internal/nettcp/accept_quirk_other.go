//go:build !ios

package nettcp

func platformRecreateOnAcceptQuirk() bool { return false }
