// Package desktop talks to the session bus: it reads the track an MPRIS
// player is showing so lyrics can be looked up for it, and posts a
// notification when an export lands on disk.
package desktop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyricmotion/internal/lyrics"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

var ErrNoPlayer = errors.New("no mpris player on the session bus")

// Track is the subset of MPRIS metadata lyrics lookup needs.
type Track struct {
	Title        string
	Artist       string
	Album        string
	DurationSecs int64
	ArtworkURL   string
}

func (t Track) Valid() bool {
	return t.Title != "" && t.Artist != ""
}

func (t Track) Params() lyrics.TrackParams {
	return lyrics.TrackParams{
		Title:        t.Title,
		Artist:       t.Artist,
		Album:        t.Album,
		DurationSecs: t.DurationSecs,
	}
}

// Players lists MPRIS bus names, e.g. "org.mpris.MediaPlayer2.spotify".
func Players(bus *dbus.Conn) ([]string, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	return players, nil
}

// NowPlaying reads the current track from service, or from the first player
// on the bus when service is empty.
func NowPlaying(bus *dbus.Conn, service string) (Track, error) {
	if bus == nil {
		return Track{}, errors.New("nil dbus connection")
	}
	if service == "" {
		players, err := Players(bus)
		if err != nil {
			return Track{}, err
		}
		if len(players) == 0 {
			return Track{}, ErrNoPlayer
		}
		service = players[0]
	} else if !strings.HasPrefix(service, mprisPrefix) {
		service = mprisPrefix + service
	}

	prop, err := bus.Object(service, mprisPath).GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return Track{}, fmt.Errorf("failed to get metadata property: %w", err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return Track{}, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}

	trk := trackFromMetadata(metadata)
	if !trk.Valid() {
		return Track{}, fmt.Errorf("missing title or artist in metadata (title=%q, artist=%q)", trk.Title, trk.Artist)
	}
	return trk, nil
}

func trackFromMetadata(metadata map[string]dbus.Variant) Track {
	return Track{
		Title:        extractString(metadata, "xesam:title"),
		Artist:       extractArtist(metadata, "xesam:artist"),
		Album:        extractString(metadata, "xesam:album"),
		ArtworkURL:   extractString(metadata, "mpris:artUrl"),
		DurationSecs: extractDurationSeconds(metadata, "mpris:length"),
	}
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
	case string:
		return typed
	}
	return ""
}

// mpris:length is microseconds, usually int64 but some players send uint64.
func extractDurationSeconds(metadata map[string]dbus.Variant, key string) int64 {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}
	switch typed := variant.Value().(type) {
	case int64:
		if typed > 0 {
			return typed / 1_000_000
		}
	case uint64:
		return int64(typed / 1_000_000)
	case int32:
		if typed > 0 {
			return int64(typed) / 1_000_000
		}
	}
	return 0
}
