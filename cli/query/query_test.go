package query

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func runQuery(args ...string) error {
	app := cli.NewApp()
	app.Commands = NewCommands()
	app.Writer = new(bytes.Buffer)
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app.Run(append([]string{"surety", "query"}, args...))
}

func TestQueryArguments(t *testing.T) {
	require.ErrorContains(t, runQuery("operational", "extra"), "no arguments expected")
	require.ErrorContains(t, runQuery("indexes"), "oracle address is missing")
	require.ErrorContains(t, runQuery("indexes", "bad"), "neither a hash nor an address")
	require.ErrorContains(t, runQuery("flight-status"), "flight key is missing")
	require.ErrorContains(t, runQuery("flight-status", "0xzz"), "invalid flight key")
	require.ErrorContains(t, runQuery("funds"), "passenger address is missing")
	require.ErrorContains(t, runQuery("funds", "bad"), "neither a hash nor an address")
}

func TestQueryNoConfig(t *testing.T) {
	err := runQuery("operational", "--config-file", t.TempDir()+"/missing.yml", "--env-file", "")
	require.ErrorContains(t, err, "unable to read config")
}

func TestParseHashes(t *testing.T) {
	h1, h2 := util.Uint160{1}, util.Uint160{2}
	res, err := parseHashes([]string{address.Uint160ToString(h1), "0x" + h2.StringLE()})
	require.NoError(t, err)
	require.Equal(t, []util.Uint160{h1, h2}, res)
}

func TestFormatIndexes(t *testing.T) {
	require.Equal(t, "1, 4, 9", formatIndexes([]uint8{1, 4, 9}))
	require.Equal(t, "", formatIndexes(nil))
}
