package kaitime

import (
	"fmt"
	"time"
)

const (
	// GenesisUnixMs is the calendar's fixed genesis instant,
	// 2024-05-10T06:45:41.888Z, in UNIX epoch milliseconds.
	GenesisUnixMs int64 = 1715323541888

	// PulseMs is the exact duration of one pulse in milliseconds (5.236s).
	PulseMs int64 = 5236

	// MicroPulsesPerPulse is the sub-pulse integer scale. All day/beat/step
	// math happens in micro-pulses so no floating point is ever involved.
	MicroPulsesPerPulse int64 = 1_000_000

	// MicroPulsesPerDay fixes the harmonic day at 17,491.270421 pulses.
	MicroPulsesPerDay int64 = 17_491_270_421

	BeatsPerDay   = 36
	StepsPerBeat  = 44
	BeatsPerArc   = 6
	ArcsPerDay    = BeatsPerDay / BeatsPerArc
	DaysPerMonth  = 42
	MonthsPerYear = 8
	DaysPerYear   = DaysPerMonth * MonthsPerYear
	DaysPerWeek   = 7
)

var chakraDayNames = [DaysPerWeek]string{
	"Solhara",
	"Aquaris",
	"Flamora",
	"Verdari",
	"Sonari",
	"Kaelith",
	"Luminara",
}

var arcNames = [ArcsPerDay]string{
	"Ignition",
	"Integration",
	"Harmonization",
	"Reflection",
	"Purification",
	"Dream",
}

// Moment is one instant expressed in calendar coordinates. Every field is
// derived from the micro-pulse count; none are stored independently.
type Moment struct {
	Pulse      int64  `json:"pulse"`
	Beat       int    `json:"beat"`       // 0-35
	Step       int    `json:"step"`       // 0-43
	Arc        string `json:"arc"`        // named group of 6 beats
	ChakraDay  string `json:"chakraDay"`  // 7-day cycle
	DayOfMonth int    `json:"dayOfMonth"` // 1-42
	Month      int    `json:"month"`      // 1-8
	Year       int64  `json:"year"`       // 0-based, negative pre-genesis
}

// MomentFromTime computes the Moment for a wall-clock time.
func MomentFromTime(t time.Time) Moment {
	return MomentFromEpochMs(t.UTC().UnixMilli())
}

// MomentFromEpochMs computes the Moment for a UNIX epoch-millisecond instant.
// Pure and deterministic: equal inputs yield identical outputs.
func MomentFromEpochMs(ms int64) Moment {
	deltaMs := ms - GenesisUnixMs

	// micro = deltaMs * MicroPulsesPerPulse / PulseMs, split to avoid
	// overflowing int64 on far-future or far-past inputs.
	wholePulses := floorDiv(deltaMs, PulseMs)
	remMs := euclidMod(deltaMs, PulseMs)
	micro := wholePulses*MicroPulsesPerPulse + floorDiv(remMs*MicroPulsesPerPulse, PulseMs)

	pulse := floorDiv(micro, MicroPulsesPerPulse)
	dayIndex := floorDiv(micro, MicroPulsesPerDay)
	microInDay := euclidMod(micro, MicroPulsesPerDay)

	beat := int(floorDiv(microInDay*BeatsPerDay, MicroPulsesPerDay))
	step := int(floorDiv(microInDay*BeatsPerDay*StepsPerBeat, MicroPulsesPerDay)) - beat*StepsPerBeat

	monthIndex := floorDiv(dayIndex, DaysPerMonth)
	yearIndex := floorDiv(dayIndex, DaysPerYear)

	return Moment{
		Pulse:      pulse,
		Beat:       beat,
		Step:       step,
		Arc:        arcNames[beat/BeatsPerArc],
		ChakraDay:  chakraDayNames[euclidMod(dayIndex, DaysPerWeek)],
		DayOfMonth: int(euclidMod(dayIndex, DaysPerMonth)) + 1,
		Month:      int(euclidMod(monthIndex, MonthsPerYear)) + 1,
		Year:       yearIndex,
	}
}

// EpochMsFromPulse is the exact inverse of the pulse component of
// [MomentFromEpochMs]: it returns the epoch-millisecond instant at which the
// given pulse begins. Round-tripping an arbitrary instant lands within one
// pulse duration of the input.
func EpochMsFromPulse(pulse int64) int64 {
	return GenesisUnixMs + pulse*PulseMs
}

// TimeFromPulse returns the UTC wall-clock time at which a pulse begins.
func TimeFromPulse(pulse int64) time.Time {
	return time.UnixMilli(EpochMsFromPulse(pulse)).UTC()
}

// String renders the common short display form, eg "3:27 Verdari 12/4".
func (m Moment) String() string {
	return fmt.Sprintf("%d:%02d %s %d/%d", m.Beat, m.Step, m.ChakraDay, m.DayOfMonth, m.Month)
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// euclidMod returns the non-negative remainder of a/b.
func euclidMod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
