package panel

import "sync"

// ThemeMode is the colour mode of the dashboard shell.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// Palette lists the colours the shell renders with in one mode.
type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Paper      string `json:"paper"`
}

var palettes = map[ThemeMode]Palette{
	ThemeLight: {Primary: "#1976d2", Secondary: "#d81b60", Background: "#f5f5f5", Paper: "#ffffff"},
	ThemeDark:  {Primary: "#90caf9", Secondary: "#f48fb1", Background: "#121212", Paper: "#1e1e1e"},
}

// Theme holds the colour mode of one workspace. It starts light.
type Theme struct {
	mu   sync.RWMutex
	mode ThemeMode
}

// NewTheme returns a light theme.
func NewTheme() *Theme {
	return &Theme{mode: ThemeLight}
}

// Mode returns the current mode.
func (t *Theme) Mode() ThemeMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// Toggle switches between light and dark and returns the new mode.
func (t *Theme) Toggle() ThemeMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == ThemeDark {
		t.mode = ThemeLight
	} else {
		t.mode = ThemeDark
	}
	return t.mode
}

// Palette returns the colours of the current mode.
func (t *Theme) Palette() Palette {
	return palettes[t.Mode()]
}
