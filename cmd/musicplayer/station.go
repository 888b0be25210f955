package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/nextui/musicplayer/station"
)

var errStationExists = errors.New("a station with that name already exists")

var (
	errStationAddArgs    = errors.New("expected at least two arguments: name and URL")
	errStationRemoveArgs = errors.New("expected exactly one argument: station name")
)

func stationCommand() *cli.Command {
	return &cli.Command{
		Name:  "station",
		Usage: "Manage the user radio-station catalogue (stations.txt)",
		Commands: []*cli.Command{
			stationListCommand(),
			stationAddCommand(),
			stationRemoveCommand(),
		},
	}
}

func settingsDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "settings-dir",
		Value: defaultSettingsDir(),
		Usage: "directory holding stations.txt",
	}
}

func stationsPath(cmd *cli.Command) string {
	return filepath.Join(cmd.String("settings-dir"), "stations.txt")
}

func stationListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List the user's saved stations",
		Flags:  []cli.Flag{settingsDirFlag()},
		Action: runStationList,
	}
}

func runStationList(_ context.Context, cmd *cli.Command) error {
	stations, err := station.LoadUserStations(stationsPath(cmd))
	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}

	if len(stations) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "no stations saved")

		return nil
	}

	for _, s := range stations {
		_, _ = fmt.Fprintf(os.Stdout, "%-24s %-10s %s\n", s.Name, s.Genre, s.URL)
	}

	return nil
}

func stationAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a station to the catalogue",
		ArgsUsage: "<name> <url> [genre] [slogan]",
		Flags:     []cli.Flag{settingsDirFlag()},
		Action:    runStationAdd,
	}
}

func runStationAdd(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return fmt.Errorf("%w: got %d", errStationAddArgs, cmd.NArg())
	}

	entry := station.Station{Name: cmd.Args().Get(0), URL: cmd.Args().Get(1)}
	if g := cmd.Args().Get(2); g != "" {
		entry.Genre = g
	}

	if s := cmd.Args().Get(3); s != "" {
		entry.Slogan = s
	}

	path := stationsPath(cmd)

	stations, err := station.LoadUserStations(path)
	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}

	for _, s := range stations {
		if s.Name == entry.Name {
			return fmt.Errorf("%q: %w", entry.Name, errStationExists)
		}
	}

	stations = append(stations, entry)

	if err := station.SaveUserStations(path, stations); err != nil {
		return fmt.Errorf("saving stations: %w", err)
	}

	return nil
}

func stationRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a station from the catalogue by name",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{settingsDirFlag()},
		Action:    runStationRemove,
	}
}

func runStationRemove(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: got %d", errStationRemoveArgs, cmd.NArg())
	}

	name := cmd.Args().First()
	path := stationsPath(cmd)

	stations, err := station.LoadUserStations(path)
	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}

	filtered := stations[:0]

	for _, s := range stations {
		if s.Name != name {
			filtered = append(filtered, s)
		}
	}

	return station.SaveUserStations(path, filtered) //nolint:wrapcheck // caller already has station/path context
}
