//go:build ios

package nettcp

// platformRecreateOnAcceptQuirk reports whether this platform needs
// the stale-listener-recreate workaround (SPEC_FULL.md
// "Configuration"): backgrounding an iOS process can leave its listening
// socket readable-forever but returning EAGAIN from every accept().
// The original re/tcp.c guards this with #if TARGET_OS_IPHONE; here
// it is a build-tag capability rather than a runtime flag, since it
// is a property of the platform, not a per-listener choice.
func platformRecreateOnAcceptQuirk() bool { return true }
