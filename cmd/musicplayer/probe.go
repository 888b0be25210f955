package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nextui/musicplayer/player"
)

var errInvalidArgCount = errors.New("expected exactly one argument: file path")

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Print format, duration, and tags for a local audio file",
		ArgsUsage: "<file>",
		Action:    runProbe,
	}
}

func runProbe(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
	}

	path := cmd.Args().First()

	info, err := player.ProbeFile(path)
	if err != nil {
		return fmt.Errorf("probing %s: %w", path, err)
	}

	durationMS := info.DurationMS
	if durationMS < 0 {
		_, _ = fmt.Fprintf(os.Stdout, "duration:    unknown (live/streaming)\n")
	} else {
		_, _ = fmt.Fprintf(os.Stdout, "duration:    %d.%03ds\n", durationMS/1000, durationMS%1000)
	}

	_, _ = fmt.Fprintf(os.Stdout, "sample rate: %d Hz\n", info.SampleRate)
	_, _ = fmt.Fprintf(os.Stdout, "title:       %s\n", orUnknown(info.Title))
	_, _ = fmt.Fprintf(os.Stdout, "artist:      %s\n", orUnknown(info.Artist))
	_, _ = fmt.Fprintf(os.Stdout, "album:       %s\n", orUnknown(info.Album))

	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}

	return s
}
