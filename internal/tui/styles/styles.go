package styles

import "github.com/charmbracelet/lipgloss"

// Oxocarbon color scheme - IBM Carbon inspired
var (
	OxocarbonBlack  = lipgloss.Color("#161616")
	OxocarbonBase01 = lipgloss.Color("#393939")
	OxocarbonBase03 = lipgloss.Color("#767676")
	OxocarbonBase04 = lipgloss.Color("#dde1e6")
	OxocarbonBase05 = lipgloss.Color("#f2f4f8")
	OxocarbonWhite  = lipgloss.Color("#ffffff")

	OxocarbonTeal   = lipgloss.Color("#3ddbd9")
	OxocarbonBlue   = lipgloss.Color("#78a9ff")
	OxocarbonPink   = lipgloss.Color("#ee5396")
	OxocarbonRed    = lipgloss.Color("#ff5252")
	OxocarbonGreen  = lipgloss.Color("#42be65")
	OxocarbonPurple = lipgloss.Color("#be95ff")
	OxocarbonMauve  = lipgloss.Color("#d1aaff")
)

var (
	// App frame with a subtle border
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonBase01)

	// Video title bar
	TitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonWhite).
			Background(OxocarbonPurple).
			Padding(0, 1).
			Bold(true)

	// Timestamps and volume readout
	MetadataStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase04)

	// Playback state badge styles, keyed by status
	StatusPlayingStyle = lipgloss.NewStyle().
				Foreground(OxocarbonGreen).
				Bold(true)

	StatusPausedStyle = lipgloss.NewStyle().
				Foreground(OxocarbonPink).
				Bold(true)

	StatusStoppedStyle = lipgloss.NewStyle().
				Foreground(OxocarbonBase03).
				Bold(true)

	// Error line under the progress bar
	ErrorStyle = lipgloss.NewStyle().
			Foreground(OxocarbonRed)

	// Transient notification (clipboard copies etc)
	NoticeStyle = lipgloss.NewStyle().
			Foreground(OxocarbonTeal).
			Italic(true)

	// Key binding help footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			Italic(true)
)
