package query

import (
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nspcc-dev/flightsurety/cli/options"
	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"github.com/nspcc-dev/flightsurety/pkg/services/oracle"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/urfave/cli"
)

// RPCEndpointFlag is a long flag name for an RPC endpoint overriding the
// configured one.
const RPCEndpointFlag = "rpc-endpoint"

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	queryFlags := []cli.Flag{
		options.ConfigFile,
		options.EnvFile,
		options.Timeout,
		cli.StringFlag{
			Name:  RPCEndpointFlag + ", r",
			Usage: "RPC node address (overrides configuration)",
		},
	}
	return []cli.Command{{
		Name:  "query",
		Usage: "Query FlightSurety contracts state",
		Subcommands: []cli.Command{
			{
				Name:   "operational",
				Usage:  "Check whether the data contract is operational",
				Action: queryOperational,
				Flags:  queryFlags,
			},
			{
				Name:      "indexes",
				Usage:     "Show indexes assigned to oracles",
				UsageText: "surety query indexes <address> [<address> ...]",
				Action:    queryIndexes,
				Flags:     queryFlags,
			},
			{
				Name:      "flight-status",
				Usage:     "Show status code recorded for the flight",
				UsageText: "surety query flight-status <key>",
				Action:    queryFlightStatus,
				Flags:     queryFlags,
			},
			{
				Name:      "funds",
				Usage:     "Show funds credited to the passenger",
				UsageText: "surety query funds <address>",
				Action:    queryFunds,
				Flags:     queryFlags,
			},
		},
	}}
}

// getReader connects to the node and returns the contract reader using the
// given signers.
func getReader(ctx *cli.Context, signers []transaction.Signer) (*rpcclient.Client, *surety.ContractReader, cli.ExitCoder) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	endpoint := cfg.Ledger.Endpoint
	if e := ctx.String(RPCEndpointFlag); e != "" {
		endpoint = e
	}
	app, err := cfg.Ledger.AppHash()
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	data, err := cfg.Ledger.DataHash()
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, err := rpcclient.New(gctx, endpoint, rpcclient.Options{
		DialTimeout:    cfg.Ledger.DialTimeout,
		RequestTimeout: cfg.Ledger.RequestTimeout,
	})
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	if err := c.Init(); err != nil {
		c.Close()
		return nil, nil, cli.NewExitError(err, 1)
	}
	return c, surety.NewReader(invoker.New(c, signers), app, data), nil
}

func queryOperational(ctx *cli.Context) error {
	if ctx.NArg() != 0 {
		return cli.NewExitError("no arguments expected", 1)
	}
	c, r, exitErr := getReader(ctx, nil)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	ok, err := r.IsOperational()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Operational: %t\n", ok)
	return nil
}

func queryIndexes(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("oracle address is missing", 1)
	}
	oracles, err := parseHashes(args)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	c, r, exitErr := getReader(ctx, nil)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	for _, h := range oracles {
		indexes, err := r.OracleIndexes(h)
		if err != nil {
			if reason, ok := surety.RejectionReason(err); ok {
				_, _ = fmt.Fprintf(tw, "%s\trejected: %s\n", address.Uint160ToString(h), reason)
				continue
			}
			return cli.NewExitError(err, 1)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", address.Uint160ToString(h), formatIndexes(indexes))
	}
	_ = tw.Flush()
	return nil
}

func queryFlightStatus(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError("flight key is missing", 1)
	}
	key, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid flight key: %w", err), 1)
	}
	c, r, exitErr := getReader(ctx, nil)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	code, err := r.FlightStatusCode(key)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Status: %d (%s)\n", code, oracle.StatusCode(code))
	return nil
}

func queryFunds(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError("passenger address is missing", 1)
	}
	passenger, err := config.ParseHash(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	c, r, exitErr := getReader(ctx, []transaction.Signer{{
		Account: passenger,
		Scopes:  transaction.CalledByEntry,
	}})
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	funds, err := r.PassengerFunds(passenger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Funds: %s\n", funds)
	return nil
}

func parseHashes(args []string) ([]util.Uint160, error) {
	res := make([]util.Uint160, 0, len(args))
	for _, a := range args {
		h, err := config.ParseHash(a)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, nil
}

func formatIndexes(indexes []uint8) string {
	s := make([]string, len(indexes))
	for i, idx := range indexes {
		s[i] = fmt.Sprint(idx)
	}
	return strings.Join(s, ", ")
}
