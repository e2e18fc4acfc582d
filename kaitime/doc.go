/*
Package kaitime implements the deterministic pulse calendar.

The calendar counts fixed-duration pulses (5.236 seconds) from a fixed genesis
instant. A day holds 36 beats grouped into 6 arcs; each beat holds 44 steps.
Months are 42 days, years are 8 months, and days cycle through 7 chakra names.

Every field of a [Moment] is a pure function of the pulse count, and the
mapping back to wall-clock milliseconds is exact to within one pulse. All
arithmetic is integer-only (Euclidean division), so pre-genesis instants
resolve to negative pulses without drift or rounding surprises.
*/
package kaitime
