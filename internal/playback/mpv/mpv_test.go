package mpv

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vidbridge/internal/playback"
)

func TestDetectPlatform(t *testing.T) {
	platform := DetectPlatform()
	assert.Contains(t, []Platform{PlatformLinux, PlatformMac, PlatformWindows, PlatformWSL}, platform)
}

func TestExecutable(t *testing.T) {
	assert.Equal(t, "mpv", Executable(PlatformLinux))
	assert.Equal(t, "mpv", Executable(PlatformMac))
	assert.Equal(t, "mpv.exe", Executable(PlatformWindows))
	// WSL runs the Linux mpv: the IPC socket lives on the Linux side.
	assert.Equal(t, "mpv", Executable(PlatformWSL))
}

func TestNewIPCConfig(t *testing.T) {
	t.Run("unix socket path", func(t *testing.T) {
		cfg, err := NewIPCConfig(PlatformLinux)
		require.NoError(t, err)
		assert.Equal(t, IPCUnixSocket, cfg.Type)
		assert.True(t, cfg.IsSocket)
		assert.Contains(t, cfg.Address, "vidbridge-mpv-")
		assert.True(t, strings.HasSuffix(cfg.Address, ".sock"))
	})

	t.Run("windows named pipe", func(t *testing.T) {
		cfg, err := NewIPCConfig(PlatformWindows)
		require.NoError(t, err)
		assert.Equal(t, IPCNamedPipe, cfg.Type)
		assert.False(t, cfg.IsSocket)
		assert.True(t, strings.HasPrefix(cfg.Address, `\\.\pipe\vidbridge-mpv-`))
	})

	t.Run("endpoints are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			cfg, err := NewIPCConfig(PlatformLinux)
			require.NoError(t, err)
			assert.False(t, seen[cfg.Address], "duplicate endpoint %s", cfg.Address)
			seen[cfg.Address] = true
		}
	})
}

func TestIPCArgument(t *testing.T) {
	cfg, err := NewIPCConfig(PlatformLinux)
	require.NoError(t, err)
	assert.Equal(t, "--input-ipc-server="+cfg.Address, cfg.IPCArgument())
}

func TestBuildArgs(t *testing.T) {
	ipcConfig := &IPCConfig{
		Type:     IPCUnixSocket,
		Address:  "/tmp/vidbridge-mpv-test.sock",
		IsSocket: true,
	}

	tests := []struct {
		name     string
		opts     Options
		src      playback.VideoSource
		want     []string
		notWant  []string
		lastArg  string
	}{
		{
			name: "plain url",
			src:  playback.VideoSource{URI: "https://example.com/video.mp4"},
			want: []string{
				ipcConfig.IPCArgument(),
				"--idle=yes",
				"--pause",
				"--keep-open=yes",
				"--no-config",
				"--msg-level=all=warn",
			},
			lastArg: "https://example.com/video.mp4",
		},
		{
			name: "start position and fullscreen",
			src: playback.VideoSource{
				URI:        "https://example.com/video.mp4",
				StartAt:    90.5,
				Fullscreen: true,
			},
			want:    []string{fmt.Sprintf("--start=%f", 90.5), "--fullscreen"},
			lastArg: "https://example.com/video.mp4",
		},
		{
			name: "custom headers",
			src: playback.VideoSource{
				URI:       "https://example.com/stream.m3u8",
				Referer:   "https://example.com/",
				UserAgent: "vidbridge/1.0",
				Headers: map[string]string{
					"Authorization": "Bearer token",
					"Referer":       "ignored",
					"User-Agent":    "ignored",
				},
			},
			want: []string{
				"--referrer=https://example.com/",
				"--user-agent=vidbridge/1.0",
				"--http-header-fields=Authorization: Bearer token",
			},
			lastArg: "https://example.com/stream.m3u8",
		},
		{
			name: "title",
			src: playback.VideoSource{
				URI:   "https://example.com/video.mp4",
				Title: "My Video",
			},
			want:    []string{"--force-media-title=My Video"},
			lastArg: "https://example.com/video.mp4",
		},
		{
			name: "debug keeps verbosity",
			opts: Options{Debug: true},
			src:  playback.VideoSource{URI: "https://example.com/video.mp4"},
			notWant: []string{"--msg-level=all=warn"},
			lastArg: "https://example.com/video.mp4",
		},
		{
			name: "user config allowed",
			opts: Options{LoadUserConfig: true},
			src:  playback.VideoSource{URI: "https://example.com/video.mp4"},
			notWant: []string{"--no-config"},
			lastArg: "https://example.com/video.mp4",
		},
		{
			name: "extra args",
			opts: Options{ExtraArgs: []string{"--volume=50"}},
			src: playback.VideoSource{
				URI:       "https://example.com/video.mp4",
				ExtraArgs: []string{"--sub-file=subs.srt"},
			},
			want:    []string{"--volume=50", "--sub-file=subs.srt"},
			lastArg: "https://example.com/video.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Player{opts: tt.opts, platform: PlatformLinux}
			args := p.buildArgs(ipcConfig, tt.src)

			for _, want := range tt.want {
				assert.Contains(t, args, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, args, notWant)
			}
			require.NotEmpty(t, args)
			assert.Equal(t, tt.lastArg, args[len(args)-1], "source URI must be the final argument")
		})
	}
}

func TestPlayerCommandsWithoutMedia(t *testing.T) {
	p := &Player{platform: PlatformLinux}

	ctx := context.Background()
	assert.Error(t, p.Play(ctx))
	assert.Error(t, p.Pause(ctx))
	assert.Error(t, p.Stop(ctx))
	assert.Error(t, p.SeekTo(ctx, 10))
	assert.Error(t, p.SetVolume(ctx, 0.5))

	_, err := p.Position(ctx)
	assert.Error(t, err)
	_, err = p.IsPlaying(ctx)
	assert.Error(t, err)
	_, err = p.VideoInfo(ctx)
	assert.Error(t, err)
}

func TestPlayerDisposeIdempotent(t *testing.T) {
	p := &Player{platform: PlatformLinux}
	require.NoError(t, p.Dispose())
	require.NoError(t, p.Dispose())

	err := p.Play(context.Background())
	assert.ErrorIs(t, err, playback.ErrDisposed)
}
