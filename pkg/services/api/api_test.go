package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/flightsurety/pkg/services/flights"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testLedger struct {
	lock    sync.Mutex
	funds   *big.Int
	err     error
	queried []util.Uint160
}

func (l *testLedger) PassengerFunds(passenger util.Uint160) (*big.Int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.queried = append(l.queried, passenger)
	return l.funds, l.err
}

func (l *testLedger) set(funds *big.Int, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.funds, l.err = funds, err
}

func (l *testLedger) getQueried() []util.Uint160 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]util.Uint160(nil), l.queried...)
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func newTestServer(t *testing.T) (*httptest.Server, *testLedger, *flights.Cache) {
	l := &testLedger{funds: big.NewInt(15)}
	c := flights.NewCache()
	srv := httptest.NewServer(NewHandler(zaptest.NewLogger(t), l, c))
	t.Cleanup(srv.Close)
	return srv, l, c
}

func TestWelcome(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, body := get(t, srv, "/api")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"message":"An API for use with your Dapp!"}`, body)
}

func TestFlights(t *testing.T) {
	srv, _, c := newTestServer(t)

	resp, body := get(t, srv, "/api/flights")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.JSONEq(t, `{"flights":[]}`, body)

	records := []flights.Record{
		{Flight: "Fly Airpeace", Key: "0x01", Timestamp: 1700000000, Airline: util.Uint160{1}},
		{Flight: "Dana Airways", Key: "0x02", Timestamp: 1700000001, Airline: util.Uint160{1}},
	}
	for _, r := range records {
		c.Append(r)
	}
	_, body = get(t, srv, "/api/flights")
	var actual struct {
		Flights []flights.Record `json:"flights"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &actual))
	require.Equal(t, records, actual.Flights)
}

func TestCORS(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/flights", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:8000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWallet(t *testing.T) {
	srv, l, _ := newTestServer(t)
	passenger := util.Uint160{7, 7, 7}

	resp, body := get(t, srv, "/api/wallet/"+address.Uint160ToString(passenger))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, WalletResponse, body)

	_, body = get(t, srv, "/api/wallet/0x"+passenger.StringLE())
	require.Equal(t, WalletResponse, body)
	require.Equal(t, []util.Uint160{passenger, passenger}, l.getQueried())

	resp, body = get(t, srv, "/api/wallet/not-a-passenger")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, WalletResponse, body)
	require.Len(t, l.getQueried(), 2) // No query for a bad id.

	resp, _ = get(t, srv, "/api/unknown")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// The wallet endpoint doesn't expose the queried funds and doesn't report
// ledger failures, it's the known behaviour the DApp relies on.
func TestWalletKnownGap(t *testing.T) {
	srv, l, _ := newTestServer(t)
	passenger := address.Uint160ToString(util.Uint160{7})

	l.set(big.NewInt(100500), nil)
	_, withFunds := get(t, srv, "/api/wallet/"+passenger)

	l.set(nil, errors.New("node is down"))
	resp, withError := get(t, srv, "/api/wallet/"+passenger)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, withFunds, withError)
	require.NotContains(t, withFunds, "100500")
}

func TestNewService(t *testing.T) {
	s := New(config.BasicService{Enabled: true, Addresses: []string{"localhost:0"}},
		zaptest.NewLogger(t), &testLedger{}, flights.NewCache())
	require.Equal(t, "API", s.Name())
	require.NoError(t, s.Start())
	t.Cleanup(s.ShutDown)

	resp, err := http.Get("http://" + s.Addresses()[0] + "/api")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
