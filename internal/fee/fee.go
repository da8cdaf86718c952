// Package fee computes the rekber service fee from the transaction nominal.
package fee

// Tier is one row of the ordered fee table. Bounds are inclusive.
type Tier struct {
	Min int64
	Max int64
	Fee int64
}

// Tiers is evaluated top to bottom; the first matching row wins. The
// 100000–150000 and 150000–300000 rows overlap at 150000 on purpose:
// 150000 belongs to the 7000 tier because it is listed first.
var Tiers = []Tier{
	{Min: 1_000, Max: 9_000, Fee: 2_000},
	{Min: 10_000, Max: 49_000, Fee: 3_000},
	{Min: 50_000, Max: 99_000, Fee: 4_000},
	{Min: 100_000, Max: 150_000, Fee: 7_000},
	{Min: 150_000, Max: 300_000, Fee: 10_000},
}

// percentAbove is the threshold past which the fee is a flat percentage.
const percentAbove = 300_000

// For returns the service fee for the given nominal. Nominals above
// 300000 pay 5%, rounded down. Nominals that match no tier (below 1000,
// or inside a gap between tiers) pay no fee.
func For(nominal int64) int64 {
	for _, t := range Tiers {
		if nominal >= t.Min && nominal <= t.Max {
			return t.Fee
		}
	}
	if nominal > percentAbove {
		return nominal * 5 / 100
	}
	return 0
}
