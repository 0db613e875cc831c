package datetime

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// IntervalExtID is the MessagePack extension type of an interval.
const IntervalExtID = 6

// Field types of the interval payload.
const (
	fieldYear = iota
	fieldMonth
	fieldWeek
	fieldDay
	fieldHour
	fieldMin
	fieldSec
	fieldNSec
	fieldAdjust
)

// Interval is a Tarantool datetime interval. Units are not normalized: 36
// hours stay 36 hours.
type Interval struct {
	Year   int64
	Month  int64
	Week   int64
	Day    int64
	Hour   int64
	Min    int64
	Sec    int64
	Nsec   int64
	Adjust Adjust
}

// combine adds other multiplied by sign unit by unit, Adjust of ival is
// kept.
func (ival Interval) combine(other Interval, sign int64) Interval {
	ival.Year += sign * other.Year
	ival.Month += sign * other.Month
	ival.Week += sign * other.Week
	ival.Day += sign * other.Day
	ival.Hour += sign * other.Hour
	ival.Min += sign * other.Min
	ival.Sec += sign * other.Sec
	ival.Nsec += sign * other.Nsec
	return ival
}

// Add returns the unit by unit sum of the intervals.
func (ival Interval) Add(add Interval) Interval {
	return ival.combine(add, 1)
}

// Sub returns the unit by unit difference of the intervals.
func (ival Interval) Sub(sub Interval) Interval {
	return ival.combine(sub, -1)
}

func (ival Interval) fields() []int64 {
	return []int64{
		fieldYear:   ival.Year,
		fieldMonth:  ival.Month,
		fieldWeek:   ival.Week,
		fieldDay:    ival.Day,
		fieldHour:   ival.Hour,
		fieldMin:    ival.Min,
		fieldSec:    ival.Sec,
		fieldNSec:   ival.Nsec,
		fieldAdjust: adjustToDt[ival.Adjust],
	}
}

// MarshalMsgpack returns the payload of the MessagePack extension: a count
// of non-zero fields followed by pairs of a field type and a value.
func (ival Interval) MarshalMsgpack() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	fields := ival.fields()
	count := 0
	for _, v := range fields {
		if v != 0 {
			count++
		}
	}
	if err := enc.EncodeUint(uint64(count)); err != nil {
		return nil, err
	}

	for typ, v := range fields {
		if v == 0 {
			continue
		}
		if err := enc.EncodeUint(uint64(typ)); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeInterval(d *msgpack.Decoder) (Interval, error) {
	var ival Interval

	count, err := d.DecodeUint()
	if err != nil {
		return ival, err
	}

	hasAdjust := false
	for i := uint(0); i < count; i++ {
		typ, err := d.DecodeUint()
		if err != nil {
			return ival, err
		}
		v, err := d.DecodeInt64()
		if err != nil {
			return ival, err
		}
		switch typ {
		case fieldYear:
			ival.Year = v
		case fieldMonth:
			ival.Month = v
		case fieldWeek:
			ival.Week = v
		case fieldDay:
			ival.Day = v
		case fieldHour:
			ival.Hour = v
		case fieldMin:
			ival.Min = v
		case fieldSec:
			ival.Sec = v
		case fieldNSec:
			ival.Nsec = v
		case fieldAdjust:
			adjust, ok := dtToAdjust[v]
			if !ok {
				return ival, fmt.Errorf("msgpack: unsupported interval adjust: %d", v)
			}
			hasAdjust = true
			ival.Adjust = adjust
		default:
			return ival, fmt.Errorf("msgpack: unsupported interval field type: %d", typ)
		}
	}

	if !hasAdjust {
		ival.Adjust = dtToAdjust[dtExcess]
	}
	return ival, nil
}

// EncodeIntervalExt encodes an Interval into a MessagePack extension.
func EncodeIntervalExt(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
	return v.Interface().(Interval).MarshalMsgpack()
}

// DecodeIntervalExt decodes a MessagePack extension into an Interval.
func DecodeIntervalExt(d *msgpack.Decoder, v reflect.Value, _ int) error {
	ival, err := decodeInterval(d)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(ival))
	return nil
}

func init() {
	msgpack.RegisterExtEncoder(IntervalExtID, Interval{}, EncodeIntervalExt)
	msgpack.RegisterExtDecoder(IntervalExtID, Interval{}, DecodeIntervalExt)
}
