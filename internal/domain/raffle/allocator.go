// Package raffle allocates globally unique raffle ticket numbers.
package raffle

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/go-faster/errors"
)

// Numbers are drawn from the fixed six-digit space 100000-999999.
const (
	numberMin  = 100000
	numberSpan = 900000
)

// attemptsPerNumber bounds the retry budget: a batch of N numbers may spend
// at most 10xN generation attempts before giving up.
const attemptsPerNumber = 10

// Repository answers whether a candidate number has already been persisted.
// The lookup is a best-effort pre-filter; the raffle_tickets UNIQUE constraint
// remains the final arbiter under concurrent allocation.
type Repository interface {
	NumberExists(ctx context.Context, number string) (bool, error)
}

// ExhaustedError reports that the retry budget ran out before a full batch
// was assembled. The caller must not persist a partial batch: a half-numbered
// book of entries is not physically distributable.
type ExhaustedError struct {
	Requested int
	Allocated int
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("raffle number allocation exhausted: %d of %d allocated in %d attempts",
		e.Allocated, e.Requested, e.Attempts)
}

// Allocator produces batches of distinct, unused ticket numbers.
type Allocator struct {
	repo Repository
}

// NewAllocator creates an Allocator over the given persisted-number set.
func NewAllocator(repo Repository) *Allocator {
	return &Allocator{repo: repo}
}

// Allocate returns count distinct six-digit numbers, each absent from the
// persisted allocation set at generation time and from the batch itself.
// It fails with *ExhaustedError once the retry budget is spent, and with a
// wrapped repository error if an existence check fails outright.
func (a *Allocator) Allocate(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}

	numbers := make([]string, 0, count)
	chosen := make(map[string]struct{}, count)
	budget := count * attemptsPerNumber

	attempts := 0
	for len(numbers) < count && attempts < budget {
		attempts++

		candidate, err := randomNumber()
		if err != nil {
			return nil, errors.Wrap(err, "generate candidate")
		}
		if _, dup := chosen[candidate]; dup {
			continue
		}

		exists, err := a.repo.NumberExists(ctx, candidate)
		if err != nil {
			return nil, errors.Wrap(err, "check candidate")
		}
		if exists {
			continue
		}

		chosen[candidate] = struct{}{}
		numbers = append(numbers, candidate)
	}

	if len(numbers) < count {
		return nil, &ExhaustedError{
			Requested: count,
			Allocated: len(numbers),
			Attempts:  attempts,
		}
	}
	return numbers, nil
}

// randomNumber draws one candidate from the six-digit space using
// crypto/rand; raffle numbers are printed on physical tickets, so the
// sequence must not be guessable.
func randomNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(numberSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", numberMin+n.Int64()), nil
}
