package driver

import "math/rand"

// Op is the kind of store operation a transaction worker issues for one
// key-sequence index.
type Op uint8

const (
	// OpRead looks the key up.
	OpRead Op = iota
	// OpUpsert blindly overwrites the key's value.
	OpUpsert
	// OpRMW reads, modifies and writes the key's value atomically.
	OpRMW
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpUpsert:
		return "upsert"
	case OpRMW:
		return "rmw"
	default:
		return "unknown"
	}
}

// Mix selects the operation kind for one transaction-loop iteration.
// A policy draws at most one value from rng per call so that realized
// ratios stay statistically accurate over large iteration counts.
type Mix func(rng *rand.Rand) Op

// ReadUpsert5050 picks Read or Upsert with equal probability.
func ReadUpsert5050(rng *rand.Rand) Op {
	if rng.Intn(2) == 0 {
		return OpRead
	}
	return OpUpsert
}

// RMW100 always picks RMW.
func RMW100(*rand.Rand) Op { return OpRMW }

// Upsert100 always picks Upsert.
func Upsert100(*rand.Rand) Op { return OpUpsert }

// Read100 always picks Read.
func Read100(*rand.Rand) Op { return OpRead }

// Mixes maps the workload names accepted by the CLI to their policies.
var Mixes = map[string]Mix{
	"read-upsert-50-50": ReadUpsert5050,
	"rmw-100":           RMW100,
	"upsert-100":        Upsert100,
	"read-100":          Read100,
}
