package surety

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Notification names emitted by the FlightSurety contracts.
const (
	OracleRequestName    = "OracleRequest"
	FlightRegisteredName = "FlightRegistered"
	AirlineFundedName    = "AirlineFunded"
	InsurancePaidName    = "InsurancePaid"
	PayInsuranceName     = "PayInsurance"
	CreditedInsureeName  = "CreditedInsuree"
	OracleReportName     = "OracleReport"
	FlightStatusInfoName = "FlightStatusInfo"
)

// OracleRequestEvent is a request for flight status addressed to oracles
// holding the given index.
type OracleRequestEvent struct {
	Index     uint8
	Airline   util.Uint160
	Flight    string
	Timestamp int64
}

// FlightRegisteredEvent represents a flight registered by an airline.
type FlightRegisteredEvent struct {
	Flight    string
	Key       []byte
	Timestamp int64
	Airline   util.Uint160
}

// AirlineFundedEvent represents an airline funding.
type AirlineFundedEvent struct {
	Airline util.Uint160
	Amount  *big.Int
}

// InsuranceEvent covers InsurancePaid, PayInsurance and CreditedInsuree
// notifications which all carry a passenger and an amount.
type InsuranceEvent struct {
	Passenger util.Uint160
	Amount    *big.Int
}

// StatusEvent covers OracleReport and FlightStatusInfo notifications.
type StatusEvent struct {
	Airline   util.Uint160
	Flight    string
	Timestamp int64
	Status    int64
}

// FromStackItem converts a stack item into an OracleRequestEvent.
func (e *OracleRequestEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventArray(item, 4)
	if err != nil {
		return err
	}
	idx, err := arr[0].TryInteger()
	if err != nil {
		return fmt.Errorf("failed to decode Index: %w", err)
	}
	if !idx.IsInt64() || idx.Int64() < 0 || idx.Int64() > 255 {
		return fmt.Errorf("invalid Index: %s", idx)
	}
	e.Index = uint8(idx.Int64())
	if e.Airline, err = hashFromItem(arr[1]); err != nil {
		return fmt.Errorf("invalid Airline: %w", err)
	}
	if e.Flight, err = stringFromItem(arr[2]); err != nil {
		return fmt.Errorf("failed to decode Flight: %w", err)
	}
	if e.Timestamp, err = int64FromItem(arr[3]); err != nil {
		return fmt.Errorf("failed to decode Timestamp: %w", err)
	}
	return nil
}

// FromStackItem converts a stack item into a FlightRegisteredEvent.
func (e *FlightRegisteredEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventArray(item, 4)
	if err != nil {
		return err
	}
	if e.Flight, err = stringFromItem(arr[0]); err != nil {
		return fmt.Errorf("failed to decode Flight: %w", err)
	}
	if e.Key, err = arr[1].TryBytes(); err != nil {
		return fmt.Errorf("failed to decode Key: %w", err)
	}
	if e.Timestamp, err = int64FromItem(arr[2]); err != nil {
		return fmt.Errorf("failed to decode Timestamp: %w", err)
	}
	if e.Airline, err = hashFromItem(arr[3]); err != nil {
		return fmt.Errorf("invalid Airline: %w", err)
	}
	return nil
}

// FromStackItem converts a stack item into an AirlineFundedEvent.
func (e *AirlineFundedEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventArray(item, 2)
	if err != nil {
		return err
	}
	if e.Airline, err = hashFromItem(arr[0]); err != nil {
		return fmt.Errorf("invalid Airline: %w", err)
	}
	if e.Amount, err = arr[1].TryInteger(); err != nil {
		return fmt.Errorf("failed to decode Amount: %w", err)
	}
	return nil
}

// FromStackItem converts a stack item into an InsuranceEvent.
func (e *InsuranceEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventArray(item, 2)
	if err != nil {
		return err
	}
	if e.Passenger, err = hashFromItem(arr[0]); err != nil {
		return fmt.Errorf("invalid Passenger: %w", err)
	}
	if e.Amount, err = arr[1].TryInteger(); err != nil {
		return fmt.Errorf("failed to decode Amount: %w", err)
	}
	return nil
}

// FromStackItem converts a stack item into a StatusEvent.
func (e *StatusEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventArray(item, 4)
	if err != nil {
		return err
	}
	if e.Airline, err = hashFromItem(arr[0]); err != nil {
		return fmt.Errorf("invalid Airline: %w", err)
	}
	if e.Flight, err = stringFromItem(arr[1]); err != nil {
		return fmt.Errorf("failed to decode Flight: %w", err)
	}
	if e.Timestamp, err = int64FromItem(arr[2]); err != nil {
		return fmt.Errorf("failed to decode Timestamp: %w", err)
	}
	if e.Status, err = int64FromItem(arr[3]); err != nil {
		return fmt.Errorf("failed to decode Status: %w", err)
	}
	return nil
}

func eventArray(item *stackitem.Array, n int) ([]stackitem.Item, error) {
	if item == nil {
		return nil, errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok || len(arr) != n {
		return nil, fmt.Errorf("invalid event structure: expected array of %d items", n)
	}
	return arr, nil
}

func hashFromItem(item stackitem.Item) (util.Uint160, error) {
	b, err := item.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}

func stringFromItem(item stackitem.Item) (string, error) {
	b, err := item.TryBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func int64FromItem(item stackitem.Item) (int64, error) {
	v, err := item.TryInteger()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, errors.New("int64 overflow")
	}
	return v.Int64(), nil
}
