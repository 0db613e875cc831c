package datetime

// An Adjust defines how a month or a year shift handles a day that does
// not exist in the target month, see:
// https://github.com/tarantool/tarantool/wiki/Datetime-Internals#date-adjustions-and-leap-years
type Adjust int

const (
	// NoneAdjust clamps the day to the last day of the target month.
	NoneAdjust Adjust = 0
	// ExcessAdjust lets the day overflow into the next month.
	ExcessAdjust Adjust = 1
	// LastAdjust clamps like NoneAdjust and keeps the last day of a month
	// the last day of the target month.
	LastAdjust Adjust = 2
)

// Values of the adjust field in the MessagePack encoding.
const (
	dtExcess = 0 // DT_EXCESS
	dtLimit  = 1 // DT_LIMIT
	dtSnap   = 2 // DT_SNAP
)

var adjustToDt = map[Adjust]int64{
	NoneAdjust:   dtLimit,
	ExcessAdjust: dtExcess,
	LastAdjust:   dtSnap,
}

var dtToAdjust = map[int64]Adjust{
	dtExcess: ExcessAdjust,
	dtLimit:  NoneAdjust,
	dtSnap:   LastAdjust,
}

// String returns the name of the adjust in Tarantool.
func (a Adjust) String() string {
	switch a {
	case NoneAdjust:
		return "none"
	case ExcessAdjust:
		return "excess"
	case LastAdjust:
		return "last"
	}
	return "unknown"
}
