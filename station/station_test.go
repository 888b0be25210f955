package station_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/station"
)

func TestLoadUserStationsParsesFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stations.txt")
	body := "# comment\n\nKEXP|https://kexp.example/stream|Indie|Seattle's own\nMinimal|https://minimal.example/stream\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	stations, err := station.LoadUserStations(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	require.Equal(t, station.Station{Name: "KEXP", URL: "https://kexp.example/stream", Genre: "Indie", Slogan: "Seattle's own"}, stations[0])
	require.Equal(t, station.Station{Name: "Minimal", URL: "https://minimal.example/stream"}, stations[1])
}

func TestLoadUserStationsMissingFile(t *testing.T) {
	t.Parallel()

	stations, err := station.LoadUserStations(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	require.Nil(t, stations)
}

func TestLoadUserStationsCapsAtMax(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := range 40 {
		fmt.Fprintf(&b, "Station%d|http://example/%d\n", i, i)
	}

	path := filepath.Join(t.TempDir(), "stations.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	stations, err := station.LoadUserStations(path)
	require.ErrorIs(t, err, station.ErrTooManyStations)
	require.Len(t, stations, station.MaxUserStations)
}

func TestSaveThenLoadUserStationsRoundTrips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "radio", "stations.txt")
	stations := []station.Station{
		{Name: "A", URL: "http://a.example", Genre: "Rock", Slogan: "loud"},
		{Name: "B", URL: "http://b.example"},
	}

	require.NoError(t, station.SaveUserStations(path, stations))

	loaded, err := station.LoadUserStations(path)
	require.NoError(t, err)
	require.Equal(t, stations, loaded)
}

func TestLoadCuratedCataloguesSkipsUnparsable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := `{"country":"USA","code":"us","stations":[{"name":"N","url":"http://u","genre":"g"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "us.json"), []byte(good), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("n/a"), 0o600))

	catalogues, err := station.LoadCuratedCatalogues(dir)
	require.NoError(t, err)
	require.Len(t, catalogues, 1)
	require.Equal(t, "USA", catalogues[0].Country)
	require.Equal(t, "us", catalogues[0].Code)
	require.Equal(t, "N", catalogues[0].Stations[0].Name)
}

func TestLoadCuratedCataloguesMissingDir(t *testing.T) {
	t.Parallel()

	catalogues, err := station.LoadCuratedCatalogues(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Nil(t, catalogues)
}
