package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/nextui/musicplayer/config"
	"github.com/nextui/musicplayer/sink"
	"github.com/nextui/musicplayer/station"

	"github.com/nextui/musicplayer/player"
)

var errNoSource = errors.New("must provide a local file path, a stream URL, or --station")

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a local audio file, a direct radio stream, or an HLS stream until interrupted",
		ArgsUsage: "<file-or-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "settings-dir",
				Value: defaultSettingsDir(),
				Usage: "directory holding settings.cfg, stations.txt, and routing.conf",
			},
			&cli.StringFlag{
				Name:  "station",
				Usage: "play a station by name from stations.txt instead of a file/URL argument",
			},
			&cli.BoolFlag{
				Name:  "hls",
				Usage: "treat the URL argument as an HLS playlist instead of a direct Icecast/Shoutcast stream",
			},
			&cli.BoolFlag{
				Name:  "repeat",
				Usage: "repeat local file playback from the start at end of file",
			},
		},
		Action: runPlay,
	}
}

func defaultSettingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".musicplayer"
	}

	return filepath.Join(home, ".musicplayer")
}

func runPlay(ctx context.Context, cmd *cli.Command) error {
	source, isURL, err := resolvePlaySource(cmd)
	if err != nil {
		return err
	}

	settingsDir := cmd.String("settings-dir")
	cacheDir := filepath.Join(settingsDir, "cache")
	routingPath := filepath.Join(settingsDir, "routing.conf")

	settings, err := config.Load(filepath.Join(settingsDir, "settings.cfg"))
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	client := newDefaultClient()
	radioClient := newRadioClient()

	p := player.New(routingPath, cacheDir, client, radioClient)
	p.SetRepeat(cmd.Bool("repeat"))
	p.SetBassFilter(settings.BassFilterHz)
	p.SetSoftLimiter(settings.SoftLimiter)

	kind := sink.DetectKind(settings.SinkPreference, routingPath)
	if err := p.Open(kind); err != nil {
		return fmt.Errorf("opening sink: %w", err)
	}

	if err := p.WatchSinkRouting(func() string { return settings.SinkPreference }); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warning: not watching routing config: %v\n", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case !isURL:
		if err := p.PlayFile(runCtx, source); err != nil {
			return fmt.Errorf("playing %s: %w", source, err)
		}
	case cmd.Bool("hls"):
		p.PlayHLS(runCtx, source)
	default:
		p.PlayRadio(runCtx, source)
	}

	_, _ = fmt.Fprintf(os.Stdout, "playing %s (Ctrl-C to stop)\n", source)

	<-runCtx.Done()
	p.Stop()

	return nil
}

func resolvePlaySource(cmd *cli.Command) (source string, isURL bool, err error) {
	if name := cmd.String("station"); name != "" {
		stations, loadErr := station.LoadUserStations(filepath.Join(cmd.String("settings-dir"), "stations.txt"))
		if loadErr != nil {
			return "", false, fmt.Errorf("loading stations: %w", loadErr)
		}

		for _, s := range stations {
			if strings.EqualFold(s.Name, name) {
				return s.URL, true, nil
			}
		}

		return "", false, fmt.Errorf("station %q: %w", name, errNoSource)
	}

	if cmd.NArg() != 1 {
		return "", false, errNoSource
	}

	arg := cmd.Args().First()

	return arg, strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"), nil
}
