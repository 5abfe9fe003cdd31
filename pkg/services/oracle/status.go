package oracle

import (
	"math/rand/v2"
	"strconv"
	"sync"
)

// StatusCode is the flight status reported by oracles.
type StatusCode int64

// Flight status codes understood by the contract.
const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// Statuses is the whole status vocabulary.
var Statuses = []StatusCode{
	StatusUnknown,
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

// Rand is a source of uniformly distributed integers in [0, n). It must be
// safe for concurrent use.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

// IntN implements Rand using the automatically seeded global generator.
func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

type seededRand struct {
	lock sync.Mutex
	r    *rand.Rand
}

// NewSeededRand returns a deterministic PCG-based Rand.
func NewSeededRand(seed uint64) Rand {
	return &seededRand{r: rand.New(rand.NewPCG(seed, seed))}
}

// IntN implements Rand.
func (s *seededRand) IntN(n int) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.r.IntN(n)
}

// RandomStatus draws a status code uniformly from Statuses.
func RandomStatus(r Rand) StatusCode {
	return Statuses[r.IntN(len(Statuses))]
}

// String implements fmt.Stringer.
func (c StatusCode) String() string {
	switch c {
	case StatusUnknown:
		return "unknown"
	case StatusOnTime:
		return "on time"
	case StatusLateAirline:
		return "late airline"
	case StatusLateWeather:
		return "late weather"
	case StatusLateTechnical:
		return "late technical"
	case StatusLateOther:
		return "late other"
	default:
		return "status " + strconv.FormatInt(int64(c), 10)
	}
}
