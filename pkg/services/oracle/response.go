package oracle

import (
	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"go.uber.org/zap"
)

// Submitter sends oracle responses on behalf of agents. Every Submit call is
// a single attempt.
type Submitter struct {
	log    *zap.Logger
	ledger Ledger
	rand   Rand
}

// NewSubmitter creates a Submitter. Status codes are drawn from r, the global
// generator is used if it's nil.
func NewSubmitter(log *zap.Logger, ledger Ledger, r Rand) *Submitter {
	if r == nil {
		r = globalRand{}
	}
	return &Submitter{log: log, ledger: ledger, rand: r}
}

// Submit reports a random flight status for req as the given agent. Errors
// are logged and returned, contract rejections are logged with the reason at
// info level since they're routine (quorum reached or index mismatch).
func (s *Submitter) Submit(agent Agent, req StatusRequest) error {
	resp := StatusResponse{StatusRequest: req, Code: RandomStatus(s.rand)}
	log := s.log.With(
		zap.String("oracle", agent.Address),
		zap.Uint8("index", req.Index),
		zap.String("flight", req.Flight),
		zap.Stringer("status", resp.Code))

	err := s.ledger.SubmitOracleResponse(agent.Hash, resp)
	if err != nil {
		if reason, ok := surety.RejectionReason(err); ok {
			submissionsTotal.WithLabelValues("rejected").Inc()
			log.Info("oracle response rejected", zap.String("reason", reason))
		} else {
			submissionsTotal.WithLabelValues("failed").Inc()
			log.Warn("failed to submit oracle response", zap.Error(err))
		}
		return err
	}
	submissionsTotal.WithLabelValues("accepted").Inc()
	log.Info("oracle response submitted")
	return nil
}
