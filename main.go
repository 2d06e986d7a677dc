package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/mgoujon/aria/internal/config"
	"github.com/mgoujon/aria/internal/download"
	"github.com/mgoujon/aria/internal/engine"
	"github.com/mgoujon/aria/internal/library"
	"github.com/mgoujon/aria/internal/organize"
	"github.com/mgoujon/aria/internal/playback"
	"github.com/mgoujon/aria/internal/transcode"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "aria",
		Short:         "Local music library manager with dual-engine playback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(scanCmd(), downloadCmd(), playCmd(), searchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles the pieces every subcommand needs.
type app struct {
	cfg *config.Config
	lib *library.Library
	org *organize.Organizer
	log *slog.Logger
}

func newApp() (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	dbPath := cfg.Library.Path
	if dbPath == "" {
		if dbPath, err = library.DefaultPath(); err != nil {
			return nil, err
		}
	}
	lib, err := library.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}

	musicFolder := cfg.Library.MusicFolder
	if musicFolder == "" {
		musicFolder = xdg.UserDirs.Music
	}
	org := organize.New(musicFolder, cfg.Library.FolderStructure, cfg.CopyFiles(), log)

	return &app{cfg: cfg, lib: lib, org: org, log: log}, nil
}

func (a *app) close() {
	if err := a.lib.Close(); err != nil {
		a.log.Warn("closing library", "error", err)
	}
}

func (a *app) musicFolder() string {
	if a.cfg.Library.MusicFolder != "" {
		return a.cfg.Library.MusicFolder
	}
	return xdg.UserDirs.Music
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <path>...",
		Short: "Import audio files into the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			progress := make(chan library.ImportProgress, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if p.Phase == "processing" {
						fmt.Printf("importing %d/%d: %s\n", p.Current, p.Total, p.CurrentFile)
					}
				}
			}()

			n, err := a.lib.Import(args, a.org, progress)
			<-done
			if err != nil {
				return err
			}
			fmt.Printf("imported %d songs\n", n)
			return nil
		},
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <url>",
		Short: "Download audio from YouTube and add it to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			mgr, err := download.New(
				a.lib.DB(), a.cfg.Download.YtDlpPath, a.musicFolder(),
				a.cfg.Download.Verbose || verbose, a.log)
			if err != nil {
				return err
			}
			job, err := mgr.Enqueue(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			progress := make(chan download.Event, 16)
			outcome := mgr.Go(ctx, job, progress)
			for {
				select {
				case ev := <-progress:
					fmt.Printf("%3d%% %s\n", ev.Percent, ev.Message)
				case out := <-outcome:
					if out.Err != nil {
						return out.Err
					}
					return a.catalogDownload(out.Result)
				}
			}
		},
	}
}

func (a *app) catalogDownload(res *download.Result) error {
	m := res.Meta
	id, err := a.lib.AddSong(&library.Song{
		Title:           m.Title,
		Artist:          m.Artist,
		Album:           m.Album,
		Year:            m.Year,
		DurationSeconds: m.DurationSeconds,
		Path:            res.MP3Path,
		AlbumArt:        m.AlbumArt,
		Source:          "youtube",
		YoutubeURL:      res.YoutubeURL,
		YoutubeID:       res.YoutubeID,
	})
	if err != nil {
		return fmt.Errorf("cataloging download: %w", err)
	}
	a.log.Info("download cataloged", "id", id, "title", m.Title)
	fmt.Printf("added: %s - %s\n", m.Artist, m.Title)
	return nil
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <file or search query>",
		Short: "Play an audio file or the first library match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			path, err := a.resolveTrack(args)
			if err != nil {
				return err
			}

			sess, err := a.newSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			if volume, muted, err := a.lib.LoadVolume(); err == nil {
				sess.SetVolume(volume)
				if muted {
					sess.Mute()
				}
			}
			defer func() {
				if err := a.lib.SaveVolume(sess.Volume(), sess.IsMuted()); err != nil {
					a.log.Warn("saving volume", "error", err)
				}
			}()

			if !sess.Load(path) {
				return fmt.Errorf("could not load %s", path)
			}
			if !sess.Play() {
				return fmt.Errorf("could not start playback of %s", path)
			}
			fmt.Printf("playing %s (%s backend)\n", path, sess.ActiveBackend())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchPlayback(ctx, sess)
		},
	}
}

// watchPlayback prints transport events until the track ends, playback
// fails terminally, or the context is canceled.
func watchPlayback(ctx context.Context, sess *playback.Session) error {
	sub := sess.Subscribe()
	defer sess.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sc := <-sub.StateChanged:
			fmt.Printf("state: %s\n", sc.Current)
		case pc := <-sub.PositionChanged:
			fmt.Printf("\r%s / %s ", formatMs(pc.Ms), formatMs(sess.DurationMs()))
		case <-sub.TrackEnded:
			fmt.Println("\ndone")
			return nil
		case ev := <-sub.Error:
			return fmt.Errorf("%s failed for %s: %w", ev.Operation, ev.Path, ev.Err)
		case <-sub.Done:
			return nil
		}
	}
}

func (a *app) resolveTrack(args []string) (string, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err == nil {
			return args[0], nil
		}
	}
	query := args[0]
	for _, arg := range args[1:] {
		query += " " + arg
	}
	songs, err := a.lib.Search(query)
	if err != nil {
		return "", err
	}
	if len(songs) == 0 {
		return "", fmt.Errorf("no match for %q", query)
	}
	return songs[0].Path, nil
}

func (a *app) newSession() (*playback.Session, error) {
	p := a.cfg.Playback
	factories := map[engine.Backend]engine.Factory{
		engine.Native: func() (engine.Driver, error) {
			return engine.NewNative(engine.Options{
				Quiet:       p.Quiet,
				AudioOutput: p.AudioOutput,
				CacheMs:     p.CacheMs,
			}, a.log)
		},
		engine.Framework: func() (engine.Driver, error) {
			return engine.NewFramework(a.log)
		},
	}
	sel := engine.NewSelector(
		engine.ParseBackend(p.PreferredBackend), a.cfg.AllowFallback(), factories, a.log)
	if err := sel.SelectInitial(); err != nil {
		return nil, err
	}

	return playback.NewSession(a.cfg, playback.SessionOptions{
		Selector:   sel,
		Classifier: transcode.NewClassifier(p.TranscodeExts),
		Transcoder: transcode.NewTranscoder(os.TempDir()),
	}, a.log), nil
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the library by title, artist or album",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			query := args[0]
			for _, arg := range args[1:] {
				query += " " + arg
			}
			songs, err := a.lib.Search(query)
			if err != nil {
				return err
			}
			for _, s := range songs {
				fmt.Printf("%-30s %-20s %-20s %s\n",
					s.Title, s.Artist, s.Album, formatMs(int64(s.DurationSeconds*1000)))
			}
			if len(songs) == 0 {
				fmt.Println("no matches")
			}
			return nil
		},
	}
}

func formatMs(ms int64) string {
	if ms <= 0 {
		return "--:--"
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
