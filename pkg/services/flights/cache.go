/*
Package flights contains the in-memory cache of flights registered on the
ledger. Records are only appended, they're never changed or removed.
*/
package flights

import (
	"slices"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Record is a flight registration observed on the ledger.
type Record struct {
	Flight    string       `json:"flight"`
	Key       string       `json:"key"`
	Timestamp int64        `json:"timestamp"`
	Airline   util.Uint160 `json:"airline"`
}

// Cache is an append-only list of flight records safe for concurrent use.
type Cache struct {
	lock    sync.RWMutex
	records []Record
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Append adds r to the end of the list.
func (c *Cache) Append(r Record) {
	c.lock.Lock()
	c.records = append(c.records, r)
	c.lock.Unlock()
	flightRecords.Inc()
}

// List returns a copy of all records in append order.
func (c *Cache) List() []Record {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return slices.Clone(c.records)
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.records)
}
