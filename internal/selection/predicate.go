package selection

import (
	"fmt"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/registry"
)

// Predicate is one named filter over receivers. A receiver whose needed
// field failed to parse is always rejected.
type Predicate struct {
	Name string
	Keep func(catalog.Receiver) bool
}

// MinSNR keeps receivers whose SNR, read with metric m, is above min.
func MinSNR(min int, m catalog.Metric) Predicate {
	return Predicate{
		Name: fmt.Sprintf("snr>%d", min),
		Keep: func(r catalog.Receiver) bool {
			return r.Has(catalog.FieldSNR) && r.SNR.Value(m) > min
		},
	}
}

// Covers keeps receivers whose tunable span strictly contains [low, high].
func Covers(low, high int64) Predicate {
	return Predicate{
		Name: fmt.Sprintf("covers %d-%d", low, high),
		Keep: func(r catalog.Receiver) bool {
			return r.Has(catalog.FieldBands) && r.Bands.Low < low && r.Bands.High > high
		},
	}
}

// Within keeps receivers located strictly inside the box.
func Within(b registry.Box) Predicate {
	return Predicate{
		Name: fmt.Sprintf("within %g..%g,%g..%g", b.South, b.North, b.West, b.East),
		Keep: func(r catalog.Receiver) bool {
			if !r.Has(catalog.FieldGPS) {
				return false
			}
			p := r.Position
			return p.Lat > b.South && p.Lat < b.North && p.Lon > b.West && p.Lon < b.East
		},
	}
}

// HasCapacity keeps receivers with a free listener slot.
func HasCapacity() Predicate {
	return Predicate{
		Name: "capacity",
		Keep: func(r catalog.Receiver) bool {
			return r.Has(catalog.FieldUsers) && r.Users < r.UsersMax
		},
	}
}

// All combines predicates; the result keeps a receiver only if every one does.
func All(preds ...Predicate) Predicate {
	return Predicate{
		Name: "all",
		Keep: func(r catalog.Receiver) bool {
			for _, p := range preds {
				if !p.Keep(r) {
					return false
				}
			}
			return true
		},
	}
}

// Filter returns, in input order, the receivers every predicate keeps.
func Filter(rx []catalog.Receiver, preds ...Predicate) []catalog.Receiver {
	keep := All(preds...).Keep
	out := make([]catalog.Receiver, 0, len(rx))
	for _, r := range rx {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
