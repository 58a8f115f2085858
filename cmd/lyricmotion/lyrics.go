package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/colors"
	"karolbroda.com/lyricmotion/internal/desktop"
	"karolbroda.com/lyricmotion/internal/lyrics"
)

var (
	fetchNowPlaying bool
	fetchPlayer     string
	fetchOut        string
	fetchPlain      bool
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "find lyrics on lrclib",
	Long:  `search lrclib.net or fetch lyrics for a track, optionally the one playing in an mpris player.`,
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "search lrclib for matching tracks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		results, err := newLyricsClient().Search(cmd.Context(), query)
		if err != nil {
			return apperr.Wrap(apperr.KindNetwork, "lyrics.search", "search failed", err)
		}
		if len(results) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no results for %q\n", query)
			return nil
		}

		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.ArtistName,
				r.TrackName,
				colors.FormatTime(r.Duration),
				yesNo(r.SyncedLyrics != ""),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"id", "artist", "title", "length", "synced"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch [artist] [title]",
	Short: "fetch lyrics for a track",
	Long: `fetch lyrics for the given track, or for the track playing in an mpris
player with --now-playing. synced lyrics are preferred so export can use
their timestamps.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if fetchNowPlaying {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var params lyrics.TrackParams
		if fetchNowPlaying {
			trk, err := nowPlaying(fetchPlayer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "now playing: %s - %s\n", trk.Artist, trk.Title)
			params = trk.Params()
		} else {
			params = lyrics.TrackParams{Artist: args[0], Title: args[1]}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		res, err := newLyricsClient().Fetch(ctx, params)
		if errors.Is(err, lyrics.ErrNotFound) {
			return apperr.Wrap(apperr.KindNetwork, "lyrics.fetch", "no lyrics found", err)
		}
		if err != nil {
			return apperr.Wrap(apperr.KindNetwork, "lyrics.fetch", "fetch failed", err)
		}

		body := res.Text()
		if fetchPlain && res.PlainLyrics != "" {
			body = res.PlainLyrics
		}
		if strings.TrimSpace(body) == "" {
			return apperr.New(apperr.KindNetwork, "lyrics.fetch", "track has no lyrics (instrumental?)")
		}

		if fetchOut == "" {
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		}
		if err := os.WriteFile(fetchOut, []byte(body+"\n"), 0o644); err != nil {
			return fmt.Errorf("write lyrics: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s - %s to %s (synced: %s)\n",
			res.ArtistName, res.TrackName, fetchOut, yesNo(lyrics.LooksSynced(body)))
		return nil
	},
}

var lyricsPlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "list mpris players on the session bus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		players, err := desktop.Players(bus)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no mpris players found")
			return nil
		}

		rows := make([][]string, 0, len(players))
		for _, p := range players {
			title := "-"
			if trk, err := desktop.NowPlaying(bus, p); err == nil {
				title = trk.Artist + " - " + trk.Title
			}
			rows = append(rows, []string{strings.TrimPrefix(p, "org.mpris.MediaPlayer2."), title})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"player", "playing"}, rows, nil))
		return nil
	},
}

func init() {
	f := lyricsFetchCmd.Flags()
	f.BoolVarP(&fetchNowPlaying, "now-playing", "n", false, "use the track playing in an mpris player")
	f.StringVarP(&fetchPlayer, "player", "p", "", "mpris player name, e.g. spotify (default: first found)")
	f.StringVarP(&fetchOut, "out", "o", "", "write lyrics to this file instead of stdout")
	f.BoolVar(&fetchPlain, "plain", false, "prefer plain lyrics over synced")

	lyricsCmd.AddCommand(lyricsSearchCmd)
	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsPlayersCmd)
	rootCmd.AddCommand(lyricsCmd)
}

func nowPlaying(player string) (desktop.Track, error) {
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return desktop.Track{}, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	trk, err := desktop.NowPlaying(bus, player)
	if errors.Is(err, desktop.ErrNoPlayer) {
		return desktop.Track{}, apperr.Wrap(apperr.KindInvalidInput, "lyrics.fetch", "no mpris player is running", err)
	}
	return trk, err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
