package oracle

import (
	"math/big"

	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Bootstrap registers all pool agents as oracles recording their indexes,
// funds the owner airline and registers configured flights. Failures are
// logged, nothing is retried. It returns when all calls are completed or
// the service is stopped.
func (o *Oracle) Bootstrap() {
	o.Log.Info("bootstrapping",
		zap.Int("oracles", len(o.Pool.Agents)),
		zap.Int("flights", len(o.FlightNames)))

	var (
		g          errgroup.Group
		registered atomic.Int32
	)
	if o.MaxConcurrentBootstrap > 0 {
		g.SetLimit(o.MaxConcurrentBootstrap)
	}
	for _, a := range o.Pool.Agents {
		g.Go(func() error {
			if o.registerAgent(a) {
				registered.Inc()
			}
			return nil
		})
	}
	g.Go(func() error {
		o.fundOwner()
		return nil
	})
	for _, name := range o.FlightNames {
		g.Go(func() error {
			o.registerFlight(name)
			return nil
		})
	}
	_ = g.Wait()

	o.Log.Info("bootstrap finished",
		zap.Int32("registered", registered.Load()),
		zap.Int("oracles", len(o.Pool.Agents)))
}

func (o *Oracle) stopping() bool {
	select {
	case <-o.quit:
		return true
	default:
		return false
	}
}

func (o *Oracle) registerAgent(a Agent) bool {
	if o.stopping() {
		return false
	}
	if err := o.Ledger.RegisterOracle(a.Hash, o.Stake); err != nil {
		o.logCallFailure("failed to register oracle", err, zap.String("oracle", a.Address))
		return false
	}
	indices, err := o.Ledger.OracleIndexes(a.Hash)
	if err != nil {
		o.logCallFailure("failed to get oracle indexes", err, zap.String("oracle", a.Address))
		return false
	}
	if err := o.registry.Record(a, indices); err != nil {
		o.Log.Warn("can't record oracle indexes", zap.String("oracle", a.Address), zap.Error(err))
		return false
	}
	o.Log.Info("oracle registered",
		zap.String("oracle", a.Address),
		zap.Uint8s("indexes", indices))
	return true
}

func (o *Oracle) fundOwner() {
	if o.stopping() {
		return
	}
	owner := o.Pool.Owner
	if err := o.Ledger.FundAirline(owner.Hash, new(big.Int).Set(o.Stake)); err != nil {
		o.logCallFailure("failed to fund airline", err, zap.String("airline", owner.Address))
		return
	}
	o.Log.Info("airline funded", zap.String("airline", owner.Address), zap.Stringer("amount", o.Stake))
}

func (o *Oracle) registerFlight(name string) {
	if o.stopping() {
		return
	}
	owner := o.Pool.Owner
	ts := o.Now().Unix()
	if err := o.Ledger.RegisterFlight(owner.Hash, name, ts); err != nil {
		o.logCallFailure("failed to register flight", err, zap.String("flight", name))
		return
	}
	o.Log.Info("flight registered",
		zap.String("flight", name),
		zap.String("airline", owner.Address),
		zap.Int64("timestamp", ts))
}

func (o *Oracle) logCallFailure(msg string, err error, fields ...zap.Field) {
	if reason, ok := surety.RejectionReason(err); ok {
		o.Log.Warn(msg, append(fields, zap.String("reason", reason))...)
		return
	}
	o.Log.Error(msg, append(fields, zap.Error(err))...)
}
