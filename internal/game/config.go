package game

import (
	"github.com/samdwyer/tilerealm/internal/gamedata"
	"github.com/samdwyer/tilerealm/internal/world"
)

// Config holds the start position used when there is no save, and the
// frame rate cap.
type Config struct {
	StartMap   string
	StartScene string
	Start      world.Point
	// MaxFPS caps the fps option read from storage. Zero means no cap.
	MaxFPS int
}

// Options are the in-game settings kept in the default storage file.
type Options struct {
	WindowName string `json:"window_name"`
	ScreenSize [2]int `json:"screen_size"`
	FPS        int    `json:"fps"`
}

// defaultOptions returns the shipped options file.
func defaultOptions() Options {
	opts, err := gamedata.Load[Options](gamedata.BundleStorage, "options.json")
	if err != nil {
		return fallbackOptions
	}
	return opts
}

var fallbackOptions = Options{WindowName: "tilerealm", ScreenSize: [2]int{80, 24}, FPS: 30}
