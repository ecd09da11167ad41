package annotation

import (
	"errors"
	"fmt"
	"math"
)

// ErrDemographics is returned for an out-of-range gender confidence.
var ErrDemographics = errors.New("invalid demographics")

// GenderThreshold separates "M" from "F" when rendering a gender confidence.
const GenderThreshold = 0.5

// Gender is a male-confidence in [0,1] or the unknown sentinel.
// Source data encodes unknown as NaN; the zero value is unknown.
type Gender struct {
	value float64
	known bool
}

// UnknownGender is the sentinel for NaN / null / "None" inputs.
var UnknownGender = Gender{}

// KnownGender returns a known gender confidence.
func KnownGender(v float64) Gender {
	return Gender{value: v, known: true}
}

// GenderFromFloat maps NaN to UnknownGender.
func GenderFromFloat(v float64) Gender {
	if math.IsNaN(v) {
		return UnknownGender
	}
	return KnownGender(v)
}

// Value returns the confidence and whether it is known.
func (g Gender) Value() (float64, bool) { return g.value, g.known }

func (g Gender) Known() bool { return g.known }

// Float returns the confidence, NaN when unknown.
func (g Gender) Float() float64 {
	if !g.known {
		return math.NaN()
	}
	return g.value
}

// Label renders "M" above the threshold, "F" otherwise and "NAN" when unknown.
func (g Gender) Label() string {
	switch {
	case !g.known:
		return "NAN"
	case g.value > GenderThreshold:
		return "M"
	default:
		return "F"
	}
}

// Age is an integer age in years or unknown.
type Age struct {
	value int
	known bool
}

// UnknownAge is the null-equivalent age.
var UnknownAge = Age{}

func KnownAge(v int) Age { return Age{value: v, known: true} }

// AgeFromFloat truncates v toward zero; NaN and infinities map to UnknownAge.
func AgeFromFloat(v float64) Age {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UnknownAge
	}
	return KnownAge(int(v))
}

func (a Age) Value() (int, bool) { return a.value, a.known }

func (a Age) Known() bool { return a.known }

// Demographics holds gender and age, which are present or absent together.
type Demographics struct {
	Gender Gender
	Age    Age
}

// NewDemographics validates the gender range.
func NewDemographics(g Gender, a Age) (*Demographics, error) {
	if v, ok := g.Value(); ok && (v < 0 || v > 1) {
		return nil, fmt.Errorf("%w: gender %v outside [0,1]", ErrDemographics, v)
	}
	return &Demographics{Gender: g, Age: a}, nil
}
