/*
Package ledger connects the oracle service to the Neo node hosting the
FlightSurety contracts. It sends contract calls on behalf of wallet accounts
and streams contract notifications.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"github.com/nspcc-dev/flightsurety/pkg/services/oracle"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativehashes"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"
)

// ErrSystemFeeLimit is returned when a call needs more GAS than allowed by
// configuration.
var ErrSystemFeeLimit = errors.New("system fee limit exceeded")

// Ledger implements oracle.Ledger over RPC.
type Ledger struct {
	log    *zap.Logger
	client *rpcclient.Client
	wallet *wallet.Wallet
	app    util.Uint160
	data   util.Uint160
	pool   oracle.Pool
	actors map[util.Uint160]*actor.Actor
	stream *Stream
}

// New connects to the node and unlocks wallet accounts: the first one is
// the pool owner, the next oracleCount ones are oracle agents.
func New(ctx context.Context, log *zap.Logger, cfg config.Ledger, wcfg config.Wallet, oracleCount int) (*Ledger, error) {
	app, err := cfg.AppHash()
	if err != nil {
		return nil, fmt.Errorf("bad app contract: %w", err)
	}
	data, err := cfg.DataHash()
	if err != nil {
		return nil, fmt.Errorf("bad data contract: %w", err)
	}
	wsEndpoint, err := cfg.GetWSEndpoint()
	if err != nil {
		return nil, err
	}

	w, accounts, err := loadAccounts(wcfg, oracleCount+1)
	if err != nil {
		return nil, err
	}

	client, err := rpcclient.New(ctx, cfg.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}
	if err := client.Init(); err != nil {
		client.Close()
		w.Close()
		return nil, fmt.Errorf("failed to initialize RPC client: %w", err)
	}

	l := &Ledger{
		log:    log,
		client: client,
		wallet: w,
		app:    app,
		data:   data,
		actors: make(map[util.Uint160]*actor.Actor, len(accounts)),
	}
	for i, acc := range accounts {
		act, err := actor.NewTuned(client, []actor.SignerAccount{{
			Signer: transaction.Signer{
				Account:          acc.ScriptHash(),
				Scopes:           transaction.CalledByEntry | transaction.CustomContracts,
				AllowedContracts: []util.Uint160{app, data, nativehashes.GasToken},
			},
			Account: acc,
		}}, actor.Options{CheckerModifier: checkInvocation(cfg.MaxSystemFee)})
		if err != nil {
			client.Close()
			w.Close()
			return nil, fmt.Errorf("failed to create actor for %s: %w", acc.Address, err)
		}
		agent := oracle.NewAgent(acc.ScriptHash())
		l.actors[agent.Hash] = act
		if i == 0 {
			l.pool.Owner = agent
		} else {
			l.pool.Agents = append(l.pool.Agents, agent)
		}
	}

	l.stream, err = NewStream(StreamConfig{
		Log:               log,
		Contracts:         []util.Uint160{app, data},
		StartHeight:       cfg.StartHeight,
		ReconnectInterval: cfg.ReconnectInterval,
		BufferSize:        cfg.EventBufferSize,
		DedupCacheSize:    cfg.DedupCacheSize,
		History:           client,
		Dial:              dialWS(wsEndpoint, cfg),
	})
	if err != nil {
		client.Close()
		w.Close()
		return nil, err
	}
	return l, nil
}

func dialWS(endpoint string, cfg config.Ledger) Dialer {
	return func(ctx context.Context) (Subscriber, error) {
		return rpcclient.NewWS(ctx, endpoint, rpcclient.WSOptions{
			Options: rpcclient.Options{
				DialTimeout:    cfg.DialTimeout,
				RequestTimeout: cfg.RequestTimeout,
			},
		})
	}
}

// Name returns service name.
func (l *Ledger) Name() string {
	return "ledger"
}

// Start starts the notification stream.
func (l *Ledger) Start() {
	l.stream.Start()
}

// Shutdown stops the notification stream and releases the connection and
// the wallet.
func (l *Ledger) Shutdown() {
	l.stream.Shutdown()
	l.client.Close()
	l.wallet.Close()
}

// Pool returns wallet identities.
func (l *Ledger) Pool() oracle.Pool {
	return l.pool
}

// Events returns contract notification stream, it's closed after Shutdown.
func (l *Ledger) Events() <-chan oracle.Event {
	return l.stream.Events()
}

// reader returns a contract reader without signers.
func (l *Ledger) reader() *surety.ContractReader {
	return surety.NewReader(invoker.New(l.client, nil), l.app, l.data)
}

// IsOperational returns the data contract operational state.
func (l *Ledger) IsOperational() (bool, error) {
	return l.reader().IsOperational()
}

// FlightStatusCode returns the status code recorded for the flight key.
func (l *Ledger) FlightStatusCode(key []byte) (int64, error) {
	return l.reader().FlightStatusCode(key)
}

// PassengerFunds returns credited funds of the passenger. The call is made
// with the passenger as a signer since the contract checks the caller.
func (l *Ledger) PassengerFunds(passenger util.Uint160) (*big.Int, error) {
	inv := invoker.New(l.client, []transaction.Signer{{
		Account: passenger,
		Scopes:  transaction.CalledByEntry,
	}})
	return surety.NewReader(inv, l.app, l.data).PassengerFunds(passenger)
}

// RegisterOracle implements oracle.Ledger.
func (l *Ledger) RegisterOracle(agent util.Uint160, stake *big.Int) error {
	return l.send(agent, "registerOracle", func(c *surety.Contract) (util.Uint256, uint32, error) {
		return c.RegisterOracle(agent, stake)
	})
}

// OracleIndexes implements oracle.Ledger.
func (l *Ledger) OracleIndexes(agent util.Uint160) ([]uint8, error) {
	act, err := l.actor(agent)
	if err != nil {
		return nil, err
	}
	return surety.NewReader(act, l.app, l.data).OracleIndexes(agent)
}

// FundAirline implements oracle.Ledger, the airline account is the sender.
func (l *Ledger) FundAirline(airline util.Uint160, amount *big.Int) error {
	return l.send(airline, "fundAirline", func(c *surety.Contract) (util.Uint256, uint32, error) {
		return c.FundAirline(airline, amount)
	})
}

// RegisterFlight implements oracle.Ledger, the airline account is the sender.
func (l *Ledger) RegisterFlight(airline util.Uint160, flight string, timestamp int64) error {
	return l.send(airline, "registerFlight", func(c *surety.Contract) (util.Uint256, uint32, error) {
		return c.RegisterFlight(airline, flight, timestamp)
	})
}

// SubmitOracleResponse implements oracle.Ledger.
func (l *Ledger) SubmitOracleResponse(agent util.Uint160, resp oracle.StatusResponse) error {
	return l.send(agent, "submitOracleResponse", func(c *surety.Contract) (util.Uint256, uint32, error) {
		return c.SubmitOracleResponse(agent, resp.Index, resp.Airline, resp.Flight, resp.Timestamp, int64(resp.Code))
	})
}

func (l *Ledger) actor(h util.Uint160) (*actor.Actor, error) {
	act, ok := l.actors[h]
	if !ok {
		return nil, fmt.Errorf("no wallet account for %s", address.Uint160ToString(h))
	}
	return act, nil
}

// send makes a transaction as the given account and waits for it to be
// accepted.
func (l *Ledger) send(sender util.Uint160, method string, call func(*surety.Contract) (util.Uint256, uint32, error)) error {
	act, err := l.actor(sender)
	if err != nil {
		return err
	}
	h, vub, err := call(surety.New(act, l.app, l.data))
	if err != nil {
		return sendError(method, err)
	}
	l.log.Debug("transaction sent",
		zap.String("method", method),
		zap.String("hash", h.StringLE()),
		zap.Uint32("vub", vub))
	aer, err := act.Wait(h, vub, nil)
	return execResult(method, aer, err)
}

// checkInvocation is the actor's checker: a FAULTed test invocation means the
// contract refuses the call, the system fee is capped by limit.
func checkInvocation(limit int64) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, t *transaction.Transaction) error {
		if err := actor.DefaultCheckerModifier(r, t); err != nil {
			return &surety.RejectedError{Reason: r.FaultException, Err: err}
		}
		if t.SystemFee > limit {
			return fmt.Errorf("%w: %d > %d", ErrSystemFeeLimit, t.SystemFee, limit)
		}
		return nil
	}
}

func sendError(method string, err error) error {
	var re *surety.RejectedError
	if errors.As(err, &re) {
		return &surety.RejectedError{Method: method, Reason: re.Reason, Err: err}
	}
	var rpcErr *neorpc.Error
	if errors.As(err, &rpcErr) {
		reason := rpcErr.Data
		if reason == "" {
			reason = rpcErr.Message
		}
		return &surety.RejectedError{Method: method, Reason: reason, Err: err}
	}
	return fmt.Errorf("%s: %w", method, err)
}

func execResult(method string, aer *state.AppExecResult, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if aer.VMState != vmstate.Halt {
		return &surety.RejectedError{Method: method, Reason: aer.FaultException}
	}
	return nil
}
