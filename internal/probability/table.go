// Package probability turns a box's prize weights into a cumulative table and
// picks prizes from it.
package probability

import (
	"fmt"
	"math"
	"sort"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
)

// Weights whose sum is within this distance of 1 are used as-is.
const sumTolerance = 1e-9

type Entry struct {
	PrizeID string
	Weight  float64
}

// Table is an immutable, normalized distribution over a box's prizes.
type Table struct {
	entries []Entry
	upper   []float64
}

// NewTable validates the weights and normalizes them so they sum to 1.
// A box without prizes, with a weight outside [0,1], or with a zero sum is
// rejected with *domain.ProbabilityTableInvalidError.
func NewTable(prizes []domain.Prize) (*Table, error) {
	if len(prizes) == 0 {
		return nil, &domain.ProbabilityTableInvalidError{Msg: "box has no prizes"}
	}

	sum := 0.0
	for _, p := range prizes {
		if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
			return nil, &domain.ProbabilityTableInvalidError{
				Msg: fmt.Sprintf("prize %s has probability %v outside [0,1]", p.ID, p.Probability),
			}
		}
		sum += p.Probability
	}
	if sum <= 0 {
		return nil, &domain.ProbabilityTableInvalidError{Msg: "prize probabilities sum to zero"}
	}

	scale := 1.0
	if math.Abs(sum-1) > sumTolerance {
		scale = sum
	}

	t := &Table{
		entries: make([]Entry, len(prizes)),
		upper:   make([]float64, len(prizes)),
	}
	acc := 0.0
	for i, p := range prizes {
		w := p.Probability / scale
		acc += w
		t.entries[i] = Entry{PrizeID: p.ID, Weight: w}
		t.upper[i] = acc
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the normalized weights in catalog order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Select maps u in [0,1) to the first prize whose cumulative bound is
// strictly greater than u. Values past the last bound, possible through
// floating point rounding, fall on the last prize.
func (t *Table) Select(u float64) string {
	i := sort.Search(len(t.upper), func(i int) bool { return t.upper[i] > u })
	if i == len(t.upper) {
		i = len(t.upper) - 1
	}
	return t.entries[i].PrizeID
}
