package mpv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform.
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformWindows
	PlatformWSL
	PlatformMac
)

// IPCType represents the IPC connection type.
type IPCType int

const (
	IPCUnixSocket IPCType = iota
	IPCNamedPipe
	IPCTCP
)

// IPCConfig holds the IPC endpoint for one mpv instance.
type IPCConfig struct {
	Type     IPCType
	Address  string
	IsSocket bool // true for Unix sockets, false for pipes/TCP
}

// DetectPlatform detects the current platform.
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	case "linux":
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	default:
		return PlatformLinux
	}
}

// isWSL checks if running under Windows Subsystem for Linux.
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// Executable returns the mpv executable name for the platform.
func Executable(platform Platform) string {
	if platform == PlatformWindows {
		return "mpv.exe"
	}
	// WSL uses Linux mpv: unix sockets work from WSL, Windows named
	// pipes do not.
	return "mpv"
}

// FindExecutable resolves the mpv binary in PATH.
func FindExecutable(platform Platform) (string, error) {
	executable := Executable(platform)
	path, err := exec.LookPath(executable)
	if err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%s not found in PATH, please install mpv", executable)
}

// NewIPCConfig generates a fresh IPC endpoint for the platform.
func NewIPCConfig(platform Platform) (*IPCConfig, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return nil, err
	}

	if platform == PlatformWindows {
		return &IPCConfig{
			Type:     IPCNamedPipe,
			Address:  fmt.Sprintf(`\\.\pipe\vidbridge-mpv-%s`, suffix),
			IsSocket: false,
		}, nil
	}

	return &IPCConfig{
		Type:     IPCUnixSocket,
		Address:  filepath.Join(os.TempDir(), fmt.Sprintf("vidbridge-mpv-%s.sock", suffix)),
		IsSocket: true,
	}, nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IPCArgument returns the mpv command-line argument binding it to the
// endpoint.
func (c *IPCConfig) IPCArgument() string {
	return fmt.Sprintf("--input-ipc-server=%s", c.Address)
}

// ConnectionString returns the address in the form the gopv client
// expects.
func (c *IPCConfig) ConnectionString() string {
	if c.Type == IPCTCP {
		return fmt.Sprintf("tcp://%s", c.Address)
	}
	return c.Address
}
