/*
Package surety allows to work with the FlightSurety app and data contracts via
RPC.

Safe methods are encapsulated into ContractReader structure while Contract
provides methods to perform state-changing calls. Contract-side refusals are
reported as *RejectedError.
*/
package surety

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
)

// Invoker is used by ContractReader to call various methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
}

// Contract methods.
const (
	registerOracleMethod        = "registerOracle"
	getOracleIndexesMethod      = "getOracleIndexes"
	registerFlightMethod        = "registerFlight"
	submitOracleResponseMethod  = "submitOracleResponse"
	fetchFlightStatusCodeMethod = "fetchFlightStatusCode"
	fundAirlineMethod           = "fundAirline"
	viewPassengersFundMethod    = "viewPassengersFund"
	isOperationalMethod         = "isOperational"
)

// ContractReader provides an interface to call read-only methods of the
// FlightSurety contracts.
type ContractReader struct {
	invoker Invoker
	app     util.Uint160
	data    util.Uint160
}

// Contract provides state-changing methods of the FlightSurety contracts.
// The Actor used must have the appropriate account (oracle or airline) as
// a signer.
type Contract struct {
	ContractReader

	actor Actor
}

// NewReader creates an instance of ContractReader for the given app and data
// contracts.
func NewReader(invoker Invoker, app util.Uint160, data util.Uint160) *ContractReader {
	return &ContractReader{invoker, app, data}
}

// New creates an instance of Contract to perform actions using the given
// Actor.
func New(actor Actor, app util.Uint160, data util.Uint160) *Contract {
	return &Contract{*NewReader(actor, app, data), actor}
}

// App returns the app contract hash.
func (c *ContractReader) App() util.Uint160 {
	return c.app
}

// Data returns the data contract hash.
func (c *ContractReader) Data() util.Uint160 {
	return c.data
}

// IsOperational returns the operational flag of the data contract.
func (c *ContractReader) IsOperational() (bool, error) {
	return unwrap.Bool(checkFault(isOperationalMethod)(c.invoker.Call(c.data, isOperationalMethod)))
}

// OracleIndexes returns indexes assigned to the given registered oracle.
func (c *ContractReader) OracleIndexes(oracle util.Uint160) ([]uint8, error) {
	items, err := unwrap.Array(checkFault(getOracleIndexesMethod)(c.invoker.Call(c.app, getOracleIndexesMethod, oracle)))
	if err != nil {
		return nil, err
	}
	res := make([]uint8, 0, len(items))
	for i, item := range items {
		v, err := item.TryInteger()
		if err != nil {
			return nil, fmt.Errorf("failed to decode index #%d: %w", i, err)
		}
		if !v.IsInt64() || v.Int64() < 0 || v.Int64() > 255 {
			return nil, fmt.Errorf("index #%d is out of range: %s", i, v)
		}
		res = append(res, uint8(v.Int64()))
	}
	return res, nil
}

// FlightStatusCode returns the status code recorded for the given flight key.
func (c *ContractReader) FlightStatusCode(key []byte) (int64, error) {
	return unwrap.Int64(checkFault(fetchFlightStatusCodeMethod)(c.invoker.Call(c.app, fetchFlightStatusCodeMethod, key)))
}

// PassengerFunds returns the credited amount of the given passenger. The
// passenger is expected to be a signer of the invoker used.
func (c *ContractReader) PassengerFunds(passenger util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(checkFault(viewPassengersFundMethod)(c.invoker.Call(c.data, viewPassengersFundMethod, passenger)))
}

// RegisterOracle creates and sends a transaction registering the given oracle
// with the stake attached. The returned values are transaction hash, its
// ValidUntilBlock value and an error if any.
func (c *Contract) RegisterOracle(oracle util.Uint160, stake *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.app, registerOracleMethod, oracle, stake)
}

// FundAirline creates and sends a transaction funding the given airline.
func (c *Contract) FundAirline(airline util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.data, fundAirlineMethod, airline, amount)
}

// RegisterFlight creates and sends a transaction registering a flight of the
// given airline.
func (c *Contract) RegisterFlight(airline util.Uint160, flight string, timestamp int64) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.app, registerFlightMethod, airline, flight, timestamp)
}

// SubmitOracleResponse creates and sends a transaction with the oracle's
// status report for the given request.
func (c *Contract) SubmitOracleResponse(oracle util.Uint160, index uint8, airline util.Uint160, flight string, timestamp int64, code int64) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.app, submitOracleResponseMethod, oracle, int64(index), airline, flight, timestamp, code)
}

// SubmitOracleResponseTransaction is the same as SubmitOracleResponse, but
// returns the signed transaction instead of sending it.
func (c *Contract) SubmitOracleResponseTransaction(oracle util.Uint160, index uint8, airline util.Uint160, flight string, timestamp int64, code int64) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.app, submitOracleResponseMethod, oracle, int64(index), airline, flight, timestamp, code)
}

// checkFault turns FAULTed invocations into *RejectedError, leaving the rest
// to unwrap.
func checkFault(method string) func(*result.Invoke, error) (*result.Invoke, error) {
	return func(r *result.Invoke, err error) (*result.Invoke, error) {
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, errors.New("nil invocation result")
		}
		if r.State != vmstate.Halt.String() {
			return nil, &RejectedError{Method: method, Reason: r.FaultException}
		}
		return r, nil
	}
}
