//go:build !windows

package mpv

// pipeReady only applies to Windows named pipes; Unix sockets are
// checked by stat'ing the socket file.
func pipeReady(pipePath string) bool {
	return false
}
