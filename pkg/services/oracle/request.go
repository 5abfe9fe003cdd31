package oracle

import (
	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

type (
	// StatusRequest is a flight status request addressed to oracles with
	// the given index.
	StatusRequest struct {
		Index     uint8
		Airline   util.Uint160
		Flight    string
		Timestamp int64
		// Container is the transaction that emitted the request.
		Container util.Uint256
	}

	// StatusResponse is a status report of one oracle for one request.
	StatusResponse struct {
		StatusRequest
		Code StatusCode
	}
)

// NewStatusRequest decodes OracleRequest notification.
func NewStatusRequest(ev Event) (StatusRequest, error) {
	var e surety.OracleRequestEvent
	if err := e.FromStackItem(ev.Item); err != nil {
		return StatusRequest{}, err
	}
	return StatusRequest{
		Index:     e.Index,
		Airline:   e.Airline,
		Flight:    e.Flight,
		Timestamp: e.Timestamp,
		Container: ev.Container,
	}, nil
}

// dispatch submits a response from every agent matching the request. It
// doesn't wait for submissions to complete.
func (o *Oracle) dispatch(req StatusRequest) {
	agents := o.registry.MatchingAgents(req.Index)
	if len(agents) == 0 {
		o.Log.Debug("no oracles for request",
			zap.Uint8("index", req.Index),
			zap.String("flight", req.Flight))
		return
	}
	o.Log.Info("dispatching oracle request",
		zap.Uint8("index", req.Index),
		zap.String("airline", address.Uint160ToString(req.Airline)),
		zap.String("flight", req.Flight),
		zap.Int64("timestamp", req.Timestamp),
		zap.Int("oracles", len(agents)))
	for _, a := range agents {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			_ = o.submitter.Submit(a, req)
		}()
	}
}
