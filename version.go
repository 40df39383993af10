package srvdrv

// Version is the current version of the go-srvdrv library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Backends lists the native ServiceControl implementations
	Backends []string
	// PauseViaFreeze indicates that pause and continue map to cgroup
	// freezing on systemd
	PauseViaFreeze bool
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:        Version,
		Backends:       []string{"scm", "systemd", "memory"},
		PauseViaFreeze: true,
	}
}
