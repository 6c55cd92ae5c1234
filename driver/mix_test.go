package driver

import (
	"math"
	"math/rand"
	"testing"
)

func TestFixedMixesAreExact(t *testing.T) {
	tests := []struct {
		name string
		mix  Mix
		want Op
	}{
		{"rmw-100", RMW100, OpRMW},
		{"upsert-100", Upsert100, OpUpsert},
		{"read-100", Read100, OpRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			for i := 0; i < 1000; i++ {
				if got := tt.mix(rng); got != tt.want {
					t.Fatalf("draw %d = %s, want %s", i, got, tt.want)
				}
			}
		})
	}
}

func TestReadUpsert5050Converges(t *testing.T) {
	const draws = 200000

	rng := rand.New(rand.NewSource(42))

	var reads int
	for i := 0; i < draws; i++ {
		switch ReadUpsert5050(rng) {
		case OpRead:
			reads++
		case OpUpsert:
		default:
			t.Fatal("50/50 policy returned an operation outside {Read, Upsert}")
		}
	}

	frac := float64(reads) / draws
	if math.Abs(frac-0.5) > 0.01 {
		t.Fatalf("read fraction = %.4f over %d draws, want 0.5 +/- 0.01",
			frac, draws)
	}
}

func TestMixesRegistry(t *testing.T) {
	for _, name := range []string{
		"read-upsert-50-50", "rmw-100", "upsert-100", "read-100",
	} {
		if Mixes[name] == nil {
			t.Errorf("Mixes[%q] is missing", name)
		}
	}
}
