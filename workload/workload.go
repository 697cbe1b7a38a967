// Package workload describes the fixed synthetic write workload: one
// transaction per store instance inserting sequentially numbered keys whose
// values equal the keys.
package workload

import (
	"errors"
	"fmt"
	"strconv"
)

// KeyPrefix is the literal tag every generated key starts with.
const KeyPrefix = "test"

// Defaults match the reference harness the numbers were first collected with.
const (
	DefaultItems      = 1_000_000
	DefaultIterations = 2
	DefaultInstances  = 1
)

var (
	// ErrNegativeItems is returned when Items is below zero.
	ErrNegativeItems = errors.New("item count must not be negative")
	// ErrNoIterations is returned when Iterations is below one.
	ErrNoIterations = errors.New("iteration count must be at least 1")
	// ErrNoInstances is returned when Instances is below one.
	ErrNoInstances = errors.New("instance count must be at least 1")
)

// Spec is an immutable description of one benchmark run.
type Spec struct {
	Items      int `json:"items" yaml:"items"`
	Iterations int `json:"iterations" yaml:"iterations"`
	Instances  int `json:"instances" yaml:"instances"`
}

// DefaultSpec returns the reference workload.
func DefaultSpec() Spec {
	return Spec{
		Items:      DefaultItems,
		Iterations: DefaultIterations,
		Instances:  DefaultInstances,
	}
}

// Validate reports the first invalid field.
func (s Spec) Validate() error {
	switch {
	case s.Items < 0:
		return fmt.Errorf("%w: %d", ErrNegativeItems, s.Items)
	case s.Iterations < 1:
		return fmt.Errorf("%w: %d", ErrNoIterations, s.Iterations)
	case s.Instances < 1:
		return fmt.Errorf("%w: %d", ErrNoInstances, s.Instances)
	}

	return nil
}

// TotalWrites is the number of key/value pairs one Run inserts across all
// instances and iterations.
func (s Spec) TotalWrites() int {
	return s.Items * s.Instances * s.Iterations
}

// Key returns the i-th key. Values are written as the same bytes.
func Key(i int) []byte {
	return AppendKey(make([]byte, 0, len(KeyPrefix)+20), i)
}

// AppendKey appends the i-th key to dst, for loops that reuse one buffer.
func AppendKey(dst []byte, i int) []byte {
	dst = append(dst, KeyPrefix...)

	return strconv.AppendInt(dst, int64(i), 10)
}
