// Package txid builds the short, reversible identifiers printed on sale and return receipts.
package txid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sqids/sqids-go"
)

const (
	Alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	MinLength = 10
	// Tick is the clock resolution of Fraction.
	Tick = 100 * time.Microsecond
)

var ErrMalformed = errors.New("malformed transaction id")

// Parts are the values packed into an identifier.
type Parts struct {
	Fraction  uint64
	StoreCode uint64
	StaffCode uint64
}

// Generator encodes Parts with a fixed alphabet and minimum length. It is safe for concurrent use.
type Generator struct {
	codec *sqids.Sqids
}

func NewGenerator() (*Generator, error) {
	codec, err := sqids.New(sqids.Options{
		Alphabet:  Alphabet,
		MinLength: MinLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init sqids: %w", err)
	}
	return &Generator{codec: codec}, nil
}

// Fraction returns the first four digits of the sub-second part of at.
func Fraction(at time.Time) uint64 {
	return uint64(at.Nanosecond() / 100_000)
}

// WaitTick blocks until Fraction can yield a new value or ctx is done.
func WaitTick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(Tick)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// New encodes (Fraction(at), storeCode, staffCode).
func (g *Generator) New(at time.Time, storeCode, staffCode uint64) (string, error) {
	return g.Encode(Parts{Fraction: Fraction(at), StoreCode: storeCode, StaffCode: staffCode})
}

func (g *Generator) Encode(p Parts) (string, error) {
	id, err := g.codec.Encode([]uint64{p.Fraction, p.StoreCode, p.StaffCode})
	if err != nil {
		return "", fmt.Errorf("encode transaction id: %w", err)
	}
	return id, nil
}

// Decode reverses Encode. Ids that do not re-encode to themselves are rejected.
func (g *Generator) Decode(id string) (Parts, error) {
	numbers := g.codec.Decode(id)
	if len(numbers) != 3 {
		return Parts{}, ErrMalformed
	}
	p := Parts{Fraction: numbers[0], StoreCode: numbers[1], StaffCode: numbers[2]}
	canonical, err := g.Encode(p)
	if err != nil || canonical != id {
		return Parts{}, ErrMalformed
	}
	return p, nil
}
