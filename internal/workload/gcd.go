// Package workload holds the CPU- and sleep-bound tasks the poolme CLI runs.
package workload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// checkEvery is how many candidate divisors GCD tries between context checks.
const checkEvery = 1 << 16

// Pair is one gcd input.
type Pair struct {
	A int64 `yaml:"a" json:"a"`
	B int64 `yaml:"b" json:"b"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%d, %d)", p.A, p.B)
}

// DefaultPairs is the built-in gcd batch. Each pair takes a noticeable amount of
// CPU with the brute-force search.
var DefaultPairs = []Pair{
	{1963309, 2265973},
	{1879675, 2493670},
	{2030677, 3814172},
	{1551645, 2229620},
	{1988912, 4736670},
	{2198964, 7876293},
}

var ErrInvalidPair = errors.New("gcd needs two positive numbers")

// GCD finds the greatest common divisor by trying every candidate downward from the
// smaller number. It is deliberately slow so that pools have real work to share.
func GCD(ctx context.Context, p Pair) (int64, error) {
	if p.A <= 0 || p.B <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPair, p)
	}

	low := min(p.A, p.B)
	if p.A%low == 0 && p.B%low == 0 {
		return low, nil
	}

	for i := low / 2; i > 0; i-- {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if p.A%i == 0 && p.B%i == 0 {
			return i, nil
		}
	}
	return 1, nil
}

// pairsFile is the layout of a --pairs YAML file.
type pairsFile struct {
	Pairs []Pair `yaml:"pairs"`
}

// LoadPairs reads gcd inputs from a YAML file of the form
//
//	pairs:
//	  - {a: 12, b: 18}
func LoadPairs(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f pairsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Pairs) == 0 {
		return nil, fmt.Errorf("%s: no pairs", path)
	}
	for i, p := range f.Pairs {
		if p.A <= 0 || p.B <= 0 {
			return nil, fmt.Errorf("%s: pair %d: %w", path, i, ErrInvalidPair)
		}
	}
	return f.Pairs, nil
}
