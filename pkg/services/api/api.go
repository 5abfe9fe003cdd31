/*
Package api implements the HTTP API used by the passenger DApp: the list of
registered flights and the passenger wallet query.
*/
package api

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/flightsurety/pkg/services/flights"
	"github.com/nspcc-dev/flightsurety/pkg/services/metrics"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type (
	// Ledger is used to query passenger funds.
	Ledger interface {
		PassengerFunds(passenger util.Uint160) (*big.Int, error)
	}

	// Flights provides flight records.
	Flights interface {
		List() []flights.Record
	}

	handler struct {
		log     *zap.Logger
		ledger  Ledger
		flights Flights
	}

	flightsResponse struct {
		Flights []flights.Record `json:"flights"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)

// WalletResponse is returned by the wallet endpoint whatever the funds are.
const WalletResponse = "Successful"

const welcomeMessage = "An API for use with your Dapp!"

// New creates an API service serving on the configured addresses.
func New(cfg config.BasicService, log *zap.Logger, ledger Ledger, f Flights) *metrics.Service {
	h := NewHandler(log, ledger, f)
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: h,
		}
	}
	return metrics.NewService("API", srvs, cfg, log)
}

// NewHandler returns the API HTTP handler with CORS enabled for any origin.
func NewHandler(log *zap.Logger, ledger Ledger, f Flights) http.Handler {
	h := &handler{log: log, ledger: ledger, flights: f}
	router := httprouter.New()
	router.GET("/api", h.welcome)
	router.GET("/api/flights", h.listFlights)
	router.GET("/api/wallet/:passengerId", h.wallet)
	return cors.AllowAll().Handler(router)
}

func (h *handler) welcome(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	apiRequests.WithLabelValues("api").Inc()
	h.writeJSON(w, messageResponse{Message: welcomeMessage})
}

func (h *handler) listFlights(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	apiRequests.WithLabelValues("flights").Inc()
	records := h.flights.List()
	if records == nil {
		records = []flights.Record{}
	}
	h.writeJSON(w, flightsResponse{Flights: records})
}

// wallet queries passenger funds, the result is only logged. The reply is
// always WalletResponse.
func (h *handler) wallet(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	apiRequests.WithLabelValues("wallet").Inc()
	defer func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(WalletResponse))
	}()
	id := ps.ByName("passengerId")
	passenger, err := config.ParseHash(id)
	if err != nil {
		h.log.Warn("bad passenger id", zap.String("id", id), zap.Error(err))
		return
	}
	funds, err := h.ledger.PassengerFunds(passenger)
	if err != nil {
		h.log.Warn("failed to query passenger funds",
			zap.String("passenger", address.Uint160ToString(passenger)),
			zap.Error(err))
	} else {
		h.log.Info("passenger funds",
			zap.String("passenger", address.Uint160ToString(passenger)),
			zap.Stringer("funds", funds))
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to write response", zap.Error(err))
	}
}
