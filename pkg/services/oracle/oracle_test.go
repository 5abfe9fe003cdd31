package oracle

import (
	"errors"
	"math/big"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/flightsurety/pkg/rpcclient/surety"
	"github.com/nspcc-dev/flightsurety/pkg/services/flights"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type submission struct {
	agent util.Uint160
	resp  StatusResponse
}

type testLedger struct {
	lock sync.Mutex

	indices     map[util.Uint160][]uint8
	registerErr map[util.Uint160]error
	submitErr   map[util.Uint160]error
	fundErr     error

	registered  []util.Uint160
	funded      []util.Uint160
	amounts     []*big.Int
	flights     []string
	timestamps  []int64
	submissions []submission
}

func newTestLedger() *testLedger {
	return &testLedger{
		indices:     make(map[util.Uint160][]uint8),
		registerErr: make(map[util.Uint160]error),
		submitErr:   make(map[util.Uint160]error),
	}
}

func (l *testLedger) RegisterOracle(agent util.Uint160, _ *big.Int) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.registerErr[agent]; err != nil {
		return err
	}
	l.registered = append(l.registered, agent)
	return nil
}

func (l *testLedger) OracleIndexes(agent util.Uint160) ([]uint8, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	idx, ok := l.indices[agent]
	if !ok {
		return nil, &surety.RejectedError{Method: "getOracleIndexes", Reason: "Not registered as an oracle"}
	}
	return idx, nil
}

func (l *testLedger) FundAirline(airline util.Uint160, amount *big.Int) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.fundErr != nil {
		return l.fundErr
	}
	l.funded = append(l.funded, airline)
	l.amounts = append(l.amounts, amount)
	return nil
}

func (l *testLedger) RegisterFlight(_ util.Uint160, flight string, timestamp int64) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.flights = append(l.flights, flight)
	l.timestamps = append(l.timestamps, timestamp)
	return nil
}

func (l *testLedger) SubmitOracleResponse(agent util.Uint160, resp StatusResponse) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.submissions = append(l.submissions, submission{agent, resp})
	return l.submitErr[agent]
}

func (l *testLedger) getSubmissions() []submission {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.submissions)
}

var (
	testOwner   = NewAgent(util.Uint160{0xee})
	testAirline = util.Uint160{0xaa}
	testNow     = time.Unix(1700000000, 0)
)

// newTestOracle creates an oracle with 5 agents assigned
// [[1,3],[2,4],[1,2],[3,4],[2,3]] indexes.
func newTestOracle(t *testing.T, log *zap.Logger) (*Oracle, *testLedger, chan Event) {
	agents := testAgents(5)
	l := newTestLedger()
	for i, idx := range [][]uint8{{1, 3}, {2, 4}, {1, 2}, {3, 4}, {2, 3}} {
		l.indices[agents[i].Hash] = idx
	}
	events := make(chan Event)
	o, err := New(Config{
		Log:                    log,
		Ledger:                 l,
		Pool:                   Pool{Owner: testOwner, Agents: agents},
		Events:                 events,
		Stake:                  big.NewInt(10_0000_0000),
		FlightNames:            []string{"Fly Airpeace", "Dana Airways", "Arik Air"},
		MaxConcurrentBootstrap: 2,
		Rand:                   NewSeededRand(1),
		Now:                    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return o, l, events
}

func requestEvent(index int, flight string) Event {
	return Event{
		Container: util.Uint256{1, 2, 3},
		NotificationEvent: state.NotificationEvent{
			ScriptHash: util.Uint160{1},
			Name:       surety.OracleRequestName,
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.Make(index),
				stackitem.Make(testAirline.BytesBE()),
				stackitem.Make(flight),
				stackitem.Make(1700000000),
			}),
		},
	}
}

func startOracle(t *testing.T, o *Oracle) {
	o.Start()
	t.Cleanup(o.Shutdown)
	require.Eventually(t, func() bool { return o.Registry().Len() == len(o.Pool.Agents) },
		time.Second, 10*time.Millisecond)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Events: make(chan Event)})
	require.Error(t, err)
	_, err = New(Config{Ledger: newTestLedger()})
	require.Error(t, err)

	o, err := New(Config{Ledger: newTestLedger(), Events: make(chan Event)})
	require.NoError(t, err)
	require.Equal(t, "oracle", o.Name())
	require.NotNil(t, o.Flights)
	require.NotNil(t, o.Log)
}

func TestBootstrap(t *testing.T) {
	o, l, _ := newTestOracle(t, zaptest.NewLogger(t))
	agents := o.Pool.Agents
	l.registerErr[agents[1].Hash] = &surety.RejectedError{Method: "registerOracle", Reason: "Registration fee is required"}
	delete(l.indices, agents[3].Hash)
	l.fundErr = errors.New("connection refused")

	o.Bootstrap()

	require.ElementsMatch(t, []util.Uint160{agents[0].Hash, agents[2].Hash, agents[3].Hash, agents[4].Hash}, l.registered)
	require.Equal(t, 3, o.Registry().Len())
	for _, i := range []int{0, 2, 4} {
		indices, ok := o.Registry().Indices(agents[i].Hash)
		require.True(t, ok)
		require.Equal(t, l.indices[agents[i].Hash], indices)
	}
	for _, i := range []int{1, 3} {
		_, ok := o.Registry().Indices(agents[i].Hash)
		require.False(t, ok)
	}

	require.ElementsMatch(t, []string{"Fly Airpeace", "Dana Airways", "Arik Air"}, l.flights)
	require.Equal(t, []int64{testNow.Unix(), testNow.Unix(), testNow.Unix()}, l.timestamps)
	require.Empty(t, l.funded)

	l.fundErr = nil
	o.fundOwner()
	require.Equal(t, []util.Uint160{testOwner.Hash}, l.funded)
	require.Equal(t, []*big.Int{big.NewInt(10_0000_0000)}, l.amounts)
}

func TestDispatchMatchingAgents(t *testing.T) {
	o, l, events := newTestOracle(t, zaptest.NewLogger(t))
	startOracle(t, o)

	events <- requestEvent(2, "Dana Airways")
	require.Eventually(t, func() bool { return len(l.getSubmissions()) == 3 }, time.Second, 10*time.Millisecond)

	agents := o.Pool.Agents
	subs := l.getSubmissions()
	var submitters []util.Uint160
	for _, s := range subs {
		submitters = append(submitters, s.agent)
		require.Equal(t, uint8(2), s.resp.Index)
		require.Equal(t, testAirline, s.resp.Airline)
		require.Equal(t, "Dana Airways", s.resp.Flight)
		require.Equal(t, int64(1700000000), s.resp.Timestamp)
		require.Equal(t, util.Uint256{1, 2, 3}, s.resp.Container)
		require.Contains(t, Statuses, s.resp.Code)
	}
	require.ElementsMatch(t, []util.Uint160{agents[1].Hash, agents[2].Hash, agents[4].Hash}, submitters)

	// Nobody has index 7.
	events <- requestEvent(7, "Arik Air")
	events <- requestEvent(4, "Arik Air")
	require.Eventually(t, func() bool { return len(l.getSubmissions()) == 5 }, time.Second, 10*time.Millisecond)
}

func TestDispatchRejectionIsolated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	o, l, events := newTestOracle(t, zap.New(core))
	agents := o.Pool.Agents
	l.submitErr[agents[2].Hash] = &surety.RejectedError{Method: "submitOracleResponse", Reason: "Index does not match oracle request"}
	l.submitErr[agents[4].Hash] = errors.New("timeout")
	startOracle(t, o)

	events <- requestEvent(2, "Dana Airways")
	require.Eventually(t, func() bool {
		return logs.FilterMessage("oracle response submitted").Len() == 1 &&
			logs.FilterMessage("oracle response rejected").Len() == 1 &&
			logs.FilterMessage("failed to submit oracle response").Len() == 1
	}, time.Second, 10*time.Millisecond)
	require.Len(t, l.getSubmissions(), 3)

	rejected := logs.FilterMessage("oracle response rejected").All()[0]
	require.Equal(t, "Index does not match oracle request", rejected.ContextMap()["reason"])
	require.Equal(t, agents[2].Address, rejected.ContextMap()["oracle"])

	// The service keeps working.
	events <- requestEvent(1, "Arik Air")
	require.Eventually(t, func() bool { return len(l.getSubmissions()) == 5 }, time.Second, 10*time.Millisecond)
}

func TestFlightRegisteredEvent(t *testing.T) {
	o, _, events := newTestOracle(t, zaptest.NewLogger(t))
	startOracle(t, o)

	owner := util.Uint160{0x0e}
	events <- Event{
		NotificationEvent: state.NotificationEvent{
			Name: surety.FlightRegisteredName,
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.Make("Dana Airways"),
				stackitem.Make([]byte{0x0a, 0xbc}),
				stackitem.Make(1700000000),
				stackitem.Make(owner.BytesBE()),
			}),
		},
	}
	expected := flights.Record{Flight: "Dana Airways", Key: "0x0abc", Timestamp: 1700000000, Airline: owner}
	require.Eventually(t, func() bool { return o.Flights.Len() == 1 }, time.Second, 10*time.Millisecond)

	// Unrelated events don't touch the cache.
	events <- Event{
		NotificationEvent: state.NotificationEvent{
			Name: surety.AirlineFundedName,
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.Make(owner.BytesBE()),
				stackitem.Make(10_0000_0000),
			}),
		},
	}
	events <- Event{
		NotificationEvent: state.NotificationEvent{
			Name: surety.CreditedInsureeName,
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.Make(util.Uint160{0x0f}.BytesBE()),
				stackitem.Make(15),
			}),
		},
	}
	events <- Event{NotificationEvent: state.NotificationEvent{Name: "Transfer", Item: stackitem.NewArray(nil)}}
	// Synchronization point, the loop handles events in order.
	events <- requestEvent(9, "none")
	require.Equal(t, []flights.Record{expected}, o.Flights.List())
}

func TestMalformedEventThenValid(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	o, l, events := newTestOracle(t, zap.New(core))
	startOracle(t, o)

	malformed := requestEvent(2, "Dana Airways")
	malformed.Item = stackitem.NewArray([]stackitem.Item{stackitem.Make(2)})
	events <- malformed
	events <- Event{Err: errors.New("connection lost")}
	events <- requestEvent(2, "Dana Airways")

	require.Eventually(t, func() bool { return len(l.getSubmissions()) == 3 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, logs.FilterMessage("malformed oracle request").Len())
	require.Equal(t, 1, logs.FilterMessage("event stream error").Len())
}

func TestShutdown(t *testing.T) {
	o, _, events := newTestOracle(t, zaptest.NewLogger(t))
	o.Shutdown() // Not started, no-op.

	o.Start()
	o.Start()
	close(events)
	o.Shutdown()
	o.Shutdown()
}
