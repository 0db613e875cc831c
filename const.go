package tarantool

import (
	"github.com/tarantool/go-iproto"
)

// packetLengthBytes is the size of the MP_UINT32 packet length prefix.
const packetLengthBytes = 5

const (
	// OkCode is the header code of a successful response.
	OkCode = uint32(iproto.IPROTO_OK)
	// PushCode is the header code of an out-of-band push message.
	PushCode = uint32(iproto.IPROTO_CHUNK)
)

// Iter is the iterator type of a select. The values are the ones of
// box.index iterators.
type Iter uint32

const (
	IterEq  Iter = iota // key == x, ascending
	IterReq             // key == x, descending
	IterAll             // every tuple
	IterLt              // key < x
	IterLe              // key <= x
	IterGe              // key >= x
	IterGt              // key > x

	IterBitsAllSet    // all bits of x are set in key
	IterBitsAnySet    // any bit of x is set in key
	IterBitsAllNotSet // no bit of x is set in key

	IterOverlaps // rtree: key overlaps x
	IterNeighbor // rtree: by distance from x
)

// DefaultLimit is the select limit used when a caller sets none.
const DefaultLimit = uint32(0xFFFFFFFF)

// Insert flags understood by InsertWithFlags. They keep the values of the
// box flags of the classic binary protocol.
const (
	// BoxReturnTuple asks to return the affected tuple.
	BoxReturnTuple = uint32(0x01)
	// BoxAdd makes an insert fail when the primary key already exists.
	BoxAdd = uint32(0x02)
	// BoxReplace makes an insert fail when the primary key does not exist.
	BoxReplace = uint32(0x04)
)

// Rate limit actions, see Opts.RLimitAction.
const (
	// RLimitDrop fails a request at once when the limit is reached.
	RLimitDrop = 1
	// RLimitWait waits for a free slot until the request timeout.
	RLimitWait = 2
)
