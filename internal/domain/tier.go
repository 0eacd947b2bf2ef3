package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tier is one of the four fixed difficulty levels.
type Tier int

const (
	TierFacil Tier = iota + 1
	TierMedio
	TierDificil
	TierExpert
)

// HighestTier is the top of the progression ladder.
const HighestTier = TierExpert

type tierSpec struct {
	name       string
	basePoints int
	maxTime    time.Duration
}

var tierTable = map[Tier]tierSpec{
	TierFacil:   {name: "facil", basePoints: 10, maxTime: 30 * time.Second},
	TierMedio:   {name: "medio", basePoints: 20, maxTime: 60 * time.Second},
	TierDificil: {name: "dificil", basePoints: 30, maxTime: 120 * time.Second},
	TierExpert:  {name: "expert", basePoints: 50, maxTime: 180 * time.Second},
}

// Tiers lists every tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierFacil, TierMedio, TierDificil, TierExpert}
}

// Valid reports whether t is a defined tier.
func (t Tier) Valid() bool {
	_, ok := tierTable[t]
	return ok
}

// BasePoints is the score for a correct answer before the time bonus.
func (t Tier) BasePoints() int {
	return tierTable[t].basePoints
}

// MaxTime is the per-question time allowance.
func (t Tier) MaxTime() time.Duration {
	return tierTable[t].maxTime
}

// MaxSeconds is MaxTime expressed in whole seconds.
func (t Tier) MaxSeconds() int {
	return int(t.MaxTime() / time.Second)
}

// Next returns the tier following t, or false when t is the highest tier.
func (t Tier) Next() (Tier, bool) {
	if !t.Valid() || t >= HighestTier {
		return t, false
	}
	return t + 1, true
}

func (t Tier) String() string {
	if spec, ok := tierTable[t]; ok {
		return spec.name
	}
	return "tier(" + strconv.Itoa(int(t)) + ")"
}

// ParseTier accepts a tier name ("facil") or its number ("1").
func ParseTier(raw string) (Tier, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		if t := Tier(n); t.Valid() {
			return t, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, raw)
	}
	for t, spec := range tierTable {
		if spec.name == raw {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, raw)
}

// MarshalText encodes the tier by name; undefined tiers keep their number.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return []byte(strconv.Itoa(int(t))), nil
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name or number. Numbers are not range checked;
// callers use Valid.
func (t *Tier) UnmarshalText(text []byte) error {
	if n, err := strconv.Atoi(strings.TrimSpace(string(text))); err == nil {
		*t = Tier(n)
		return nil
	}
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
