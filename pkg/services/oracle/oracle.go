/*
Package oracle implements the oracle coordination service. It registers a
pool of oracle agents with the FlightSurety contract, keeps track of indexes
assigned to them and answers contract status requests on their behalf.
*/
package oracle

import (
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"github.com/nspcc-dev/flightsurety/pkg/services/flights"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Oracle is the oracle coordination service.
	Oracle struct {
		Config

		registry  *Registry
		submitter *Submitter

		started *atomic.Bool
		quit    chan struct{}
		done    chan struct{}
		// wg tracks bootstrap and in-flight submissions.
		wg sync.WaitGroup
	}

	// Config contains oracle service parameters.
	Config struct {
		Log    *zap.Logger
		Ledger Ledger
		Pool   Pool
		// Events is the contract notification stream. The service stops
		// handling events when it's closed.
		Events  <-chan Event
		Flights *flights.Cache
		// Stake is attached to oracle registrations and airline funding.
		Stake                  *big.Int
		FlightNames            []string
		MaxConcurrentBootstrap int
		// Rand is the status code source, global generator is used if nil.
		Rand Rand
		// Now is used for flight timestamps, time.Now if nil.
		Now func() time.Time
	}

	// Ledger is the set of contract calls the service needs. All methods
	// block until the outcome is known, contract refusals are reported as
	// *surety.RejectedError.
	Ledger interface {
		RegisterOracle(agent util.Uint160, stake *big.Int) error
		OracleIndexes(agent util.Uint160) ([]uint8, error)
		FundAirline(airline util.Uint160, amount *big.Int) error
		RegisterFlight(airline util.Uint160, flight string, timestamp int64) error
		SubmitOracleResponse(agent util.Uint160, resp StatusResponse) error
	}
)

// New returns a new oracle service instance.
func New(cfg Config) (*Oracle, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("no ledger")
	}
	if cfg.Events == nil {
		return nil, errors.New("no event stream")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Flights == nil {
		cfg.Flights = flights.NewCache()
	}
	if cfg.Stake == nil {
		cfg.Stake = new(big.Int)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Oracle{
		Config:    cfg,
		registry:  NewRegistry(),
		submitter: NewSubmitter(cfg.Log, cfg.Ledger, cfg.Rand),
		started:   atomic.NewBool(false),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Name returns service name.
func (o *Oracle) Name() string {
	return "oracle"
}

// Registry returns the index registry of the service.
func (o *Oracle) Registry() *Registry {
	return o.registry
}

// Start runs bootstrap and event handling in separate goroutines. Start
// doesn't wait for bootstrap to complete, events arriving before an agent is
// registered just don't match it. Subsequent calls are no-op.
func (o *Oracle) Start() {
	if !o.started.CAS(false, true) {
		return
	}
	o.Log.Info("starting oracle service",
		zap.String("owner", o.Pool.Owner.Address),
		zap.Int("oracles", len(o.Pool.Agents)))
	go o.eventLoop()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Bootstrap()
	}()
}

// Shutdown stops event handling and waits for pending calls to complete.
func (o *Oracle) Shutdown() {
	if !o.started.CAS(true, false) {
		return
	}
	o.Log.Info("stopping oracle service")
	close(o.quit)
	<-o.done
	o.wg.Wait()
}

func (o *Oracle) eventLoop() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			return
		case ev, ok := <-o.Events:
			if !ok {
				o.Log.Info("event stream closed")
				return
			}
			o.handleEvent(ev)
		}
	}
}

// handleEvent never fails, broken events are logged and dropped.
func (o *Oracle) handleEvent(ev Event) {
	if ev.Err != nil {
		eventsTotal.WithLabelValues("error").Inc()
		o.Log.Warn("event stream error", zap.Error(ev.Err))
		return
	}
	switch ev.Name {
	case surety.OracleRequestName:
		eventsTotal.WithLabelValues(ev.Name).Inc()
		req, err := NewStatusRequest(ev)
		if err != nil {
			o.Log.Error("malformed oracle request",
				zap.String("tx", ev.Container.StringLE()),
				zap.Error(err))
			return
		}
		o.dispatch(req)
	case surety.FlightRegisteredName:
		eventsTotal.WithLabelValues(ev.Name).Inc()
		var e surety.FlightRegisteredEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			o.logMalformed(ev, err)
			return
		}
		o.Flights.Append(flights.Record{
			Flight:    e.Flight,
			Key:       "0x" + hex.EncodeToString(e.Key),
			Timestamp: e.Timestamp,
			Airline:   e.Airline,
		})
		o.Log.Info("flight record added",
			zap.String("flight", e.Flight),
			zap.String("airline", address.Uint160ToString(e.Airline)),
			zap.Int64("timestamp", e.Timestamp))
	case surety.AirlineFundedName:
		eventsTotal.WithLabelValues(ev.Name).Inc()
		var e surety.AirlineFundedEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			o.logMalformed(ev, err)
			return
		}
		o.Log.Info("airline funded",
			zap.String("airline", address.Uint160ToString(e.Airline)),
			zap.Stringer("amount", e.Amount))
	case surety.InsurancePaidName, surety.PayInsuranceName, surety.CreditedInsureeName:
		eventsTotal.WithLabelValues(ev.Name).Inc()
		var e surety.InsuranceEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			o.logMalformed(ev, err)
			return
		}
		o.Log.Info("insurance event",
			zap.String("name", ev.Name),
			zap.String("passenger", address.Uint160ToString(e.Passenger)),
			zap.Stringer("amount", e.Amount))
	case surety.OracleReportName, surety.FlightStatusInfoName:
		eventsTotal.WithLabelValues(ev.Name).Inc()
		var e surety.StatusEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			o.logMalformed(ev, err)
			return
		}
		o.Log.Info("flight status reported",
			zap.String("name", ev.Name),
			zap.String("airline", address.Uint160ToString(e.Airline)),
			zap.String("flight", e.Flight),
			zap.Int64("timestamp", e.Timestamp),
			zap.Stringer("status", StatusCode(e.Status)))
	default:
		eventsTotal.WithLabelValues("other").Inc()
		o.Log.Debug("unknown notification", zap.String("name", ev.Name))
	}
}

func (o *Oracle) logMalformed(ev Event, err error) {
	o.Log.Warn("malformed notification",
		zap.String("name", ev.Name),
		zap.String("tx", ev.Container.StringLE()),
		zap.Error(err))
}
