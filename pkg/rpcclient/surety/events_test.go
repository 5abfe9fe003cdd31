package surety

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func array(items ...any) *stackitem.Array {
	res := make([]stackitem.Item, 0, len(items))
	for _, i := range items {
		res = append(res, stackitem.Make(i))
	}
	return stackitem.NewArray(res)
}

func TestOracleRequestEvent_FromStackItem(t *testing.T) {
	airline := util.Uint160{1, 2, 3}
	tests := map[string]struct {
		item     *stackitem.Array
		ok       bool
		expected OracleRequestEvent
	}{
		"good": {
			item:     array(2, airline.BytesBE(), "Dana Airways", 1700000000),
			ok:       true,
			expected: OracleRequestEvent{Index: 2, Airline: airline, Flight: "Dana Airways", Timestamp: 1700000000},
		},
		"nil":            {item: nil},
		"short":          {item: array(2, airline.BytesBE(), "Dana Airways")},
		"negative index": {item: array(-1, airline.BytesBE(), "Dana Airways", 1)},
		"big index":      {item: array(256, airline.BytesBE(), "Dana Airways", 1)},
		"bad airline":    {item: array(2, []byte{1, 2}, "Dana Airways", 1)},
		"bad flight":     {item: array(2, airline.BytesBE(), []any{1}, 1)},
		"bad timestamp":  {item: array(2, airline.BytesBE(), "Dana Airways", []any{1})},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var e OracleRequestEvent
			err := e.FromStackItem(tc.item)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, e)
		})
	}
}

func TestFlightRegisteredEvent_FromStackItem(t *testing.T) {
	airline := util.Uint160{1, 2, 3}
	var e FlightRegisteredEvent
	require.NoError(t, e.FromStackItem(array("Dana Airways", []byte{0xab, 0xcd}, 1700000000, airline.BytesBE())))
	require.Equal(t, FlightRegisteredEvent{
		Flight:    "Dana Airways",
		Key:       []byte{0xab, 0xcd},
		Timestamp: 1700000000,
		Airline:   airline,
	}, e)

	require.Error(t, e.FromStackItem(array("Dana Airways", []byte{0xab}, 1)))
	require.Error(t, e.FromStackItem(array("Dana Airways", []byte{0xab}, 1, []byte{1})))
}

func TestAmountEvents_FromStackItem(t *testing.T) {
	h := util.Uint160{9}

	var af AirlineFundedEvent
	require.NoError(t, af.FromStackItem(array(h.BytesBE(), 1000)))
	require.Equal(t, AirlineFundedEvent{Airline: h, Amount: big.NewInt(1000)}, af)
	require.Error(t, af.FromStackItem(array(h.BytesBE())))

	var ie InsuranceEvent
	require.NoError(t, ie.FromStackItem(array(h.BytesBE(), 15)))
	require.Equal(t, InsuranceEvent{Passenger: h, Amount: big.NewInt(15)}, ie)
	require.Error(t, ie.FromStackItem(array([]byte{1}, 15)))
}

func TestStatusEvent_FromStackItem(t *testing.T) {
	h := util.Uint160{9}
	var se StatusEvent
	require.NoError(t, se.FromStackItem(array(h.BytesBE(), "Arik Air", 1700000000, 20)))
	require.Equal(t, StatusEvent{Airline: h, Flight: "Arik Air", Timestamp: 1700000000, Status: 20}, se)
	require.Error(t, se.FromStackItem(array(h.BytesBE(), "Arik Air", 1700000000, []any{})))
}
