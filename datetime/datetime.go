// Package datetime provides support for Tarantool's datetime and interval
// data types.
//
// Datetime data type supported in Tarantool since 2.10. Import the package
// to pass Datetime and Interval values in tuples and keys and to receive
// them in responses.
//
// # See also
//
//   - Datetime Internals:
//     https://github.com/tarantool/tarantool/wiki/Datetime-Internals
package datetime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Datetime MessagePack serialization schema is an MP_EXT extension, which
// creates container of 8 or 16 bytes long payload.
//
//	+---------+--------+===============+-------------------------------+
//	|0xd7/0xd8|type (4)| seconds (8b)  | nsec; tzoffset; tzindex; (8b) |
//	+---------+--------+===============+-------------------------------+
//
// The second part is omitted when every field of it is zero. Fields are
// stored in little-endian order.

// ExtID represents the datetime MessagePack extension type identifier.
const ExtID = 4

// Size of datetime fields in a MessagePack value.
const (
	secondsSize  = 8
	nsecSize     = 4
	tzIndexSize  = 2
	tzOffsetSize = 2
)

const maxSize = secondsSize + nsecSize + tzIndexSize + tzOffsetSize

// Range of dates supported by Tarantool.
var (
	minSeconds = time.Date(-5879610, time.June, 22, 0, 0, 0, 0, time.UTC).Unix()
	maxSeconds = time.Date(5879611, time.July, 11, 0, 0, 0, 0, time.UTC).Unix()
)

// ErrOutOfRange is returned for a time that Tarantool could not store.
var ErrOutOfRange = errors.New("datetime: time is out of the supported range")

// Datetime is a Tarantool datetime. The time zone is kept as an offset
// from UTC with a minute precision.
type Datetime struct {
	time time.Time
}

// MakeDatetime creates a Datetime from t. Seconds of the time zone offset
// are dropped.
func MakeDatetime(t time.Time) (Datetime, error) {
	seconds := t.Unix()
	if seconds < minSeconds || seconds > maxSeconds {
		return Datetime{}, fmt.Errorf("%w: %s", ErrOutOfRange, t)
	}
	_, offset := t.Zone()
	if offset%60 != 0 {
		t = t.In(time.FixedZone("", offset/60*60))
	}
	return Datetime{time: t}, nil
}

// ToTime returns the time of the Datetime.
func (dtime Datetime) ToTime() time.Time {
	return dtime.time
}

// Add returns the Datetime shifted by the interval. The Adjust of the
// interval defines how a day overflow of a month is handled.
func (dtime Datetime) Add(ival Interval) (Datetime, error) {
	tm := dtime.time
	year, month, day := tm.Date()

	year += int(ival.Year)
	month += time.Month(ival.Month)
	if ival.Adjust != ExcessAdjust && (ival.Year != 0 || ival.Month != 0) {
		last := daysIn(year, month)
		if day > last || (ival.Adjust == LastAdjust && tm.Day() == daysIn(tm.Year(), tm.Month())) {
			day = last
		}
	}

	hour, min, sec := tm.Clock()
	tm = time.Date(year, month, day, hour, min, sec, tm.Nanosecond(), tm.Location())
	tm = tm.AddDate(0, 0, int(ival.Week*7+ival.Day))
	tm = tm.Add(time.Duration(ival.Hour)*time.Hour +
		time.Duration(ival.Min)*time.Minute +
		time.Duration(ival.Sec)*time.Second +
		time.Duration(ival.Nsec))
	return MakeDatetime(tm)
}

// Sub returns the Datetime shifted back by the interval.
func (dtime Datetime) Sub(ival Interval) (Datetime, error) {
	neg := Interval{}.Sub(ival)
	neg.Adjust = ival.Adjust
	return dtime.Add(neg)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MarshalMsgpack returns the payload of the MessagePack extension.
func (dtime Datetime) MarshalMsgpack() ([]byte, error) {
	tm := dtime.time
	_, offset := tm.Zone()

	seconds := tm.Unix()
	nsec := int32(tm.Nanosecond())
	tzOffset := int16(offset / 60)

	size := secondsSize
	if nsec != 0 || tzOffset != 0 {
		size = maxSize
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf, uint64(seconds))
	if size == maxSize {
		binary.LittleEndian.PutUint32(buf[secondsSize:], uint32(nsec))
		binary.LittleEndian.PutUint16(buf[secondsSize+nsecSize:], uint16(tzOffset))
		// Olson time zone indexes are not supported.
		binary.LittleEndian.PutUint16(buf[secondsSize+nsecSize+tzOffsetSize:], 0)
	}
	return buf, nil
}

// UnmarshalMsgpack decodes the payload of the MessagePack extension.
func (dtime *Datetime) UnmarshalMsgpack(b []byte) error {
	if len(b) != maxSize && len(b) != secondsSize {
		return fmt.Errorf("msgpack: invalid datetime length: got %d, wanted %d or %d",
			len(b), secondsSize, maxSize)
	}

	seconds := int64(binary.LittleEndian.Uint64(b))
	var nsec int32
	var tzOffset int16
	if len(b) == maxSize {
		nsec = int32(binary.LittleEndian.Uint32(b[secondsSize:]))
		tzOffset = int16(binary.LittleEndian.Uint16(b[secondsSize+nsecSize:]))
	}

	loc := time.UTC
	if tzOffset != 0 {
		loc = time.FixedZone("", int(tzOffset)*60)
	}
	dtime.time = time.Unix(seconds, int64(nsec)).In(loc)
	return nil
}

// EncodeExt encodes a Datetime into a MessagePack extension.
func EncodeExt(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
	return v.Interface().(Datetime).MarshalMsgpack()
}

// DecodeExt decodes a MessagePack extension into a Datetime.
func DecodeExt(d *msgpack.Decoder, v reflect.Value, extLen int) error {
	b := make([]byte, extLen)
	if _, err := io.ReadFull(d.Buffered(), b); err != nil {
		return fmt.Errorf("msgpack: can't read bytes on datetime decode: %w", err)
	}

	ptr := v.Addr().Interface().(*Datetime)
	return ptr.UnmarshalMsgpack(b)
}

func init() {
	msgpack.RegisterExtEncoder(ExtID, Datetime{}, EncodeExt)
	msgpack.RegisterExtDecoder(ExtID, Datetime{}, DecodeExt)
}
