package box

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const infoFunction = "box.info"

// Info is a part of the box.info() table.
type Info struct {
	Version string `msgpack:"version"`
	// ID is nil for an instance that is not bootstrapped.
	ID     *int   `msgpack:"id"`
	RO     bool   `msgpack:"ro"`
	UUID   string `msgpack:"uuid"`
	PID    int    `msgpack:"pid"`
	Status string `msgpack:"status"`
	LSN    uint64 `msgpack:"lsn"`
	// Replication is keyed by the instance id.
	Replication map[int]Replication `msgpack:"replication,omitempty"`
}

// Replication describes an instance of the replica set.
type Replication struct {
	ID         int        `msgpack:"id"`
	UUID       string     `msgpack:"uuid"`
	LSN        uint64     `msgpack:"lsn"`
	Upstream   Upstream   `msgpack:"upstream,omitempty"`
	Downstream Downstream `msgpack:"downstream,omitempty"`
}

// Upstream is a replication connection from the instance to us.
type Upstream struct {
	Status string `msgpack:"status"`
	// Idle is seconds since the last event was received.
	Idle float64 `msgpack:"idle"`
	Peer string  `msgpack:"peer"`
	Lag  float64 `msgpack:"lag"`
	// Message and SystemMessage are set in a degraded state only.
	Message       string `msgpack:"message,omitempty"`
	SystemMessage string `msgpack:"system_message,omitempty"`
}

// Downstream is a replication connection from us to the instance.
type Downstream struct {
	Status string         `msgpack:"status"`
	Idle   float64        `msgpack:"idle"`
	VClock map[int]uint64 `msgpack:"vclock"`
	Lag    float64        `msgpack:"lag"`

	Message       string `msgpack:"message,omitempty"`
	SystemMessage string `msgpack:"system_message,omitempty"`
}

// InfoResponse decodes the result of a box.info call.
type InfoResponse struct {
	Info Info
}

// DecodeMsgpack decodes the single value returned by box.info.
func (ir *InfoResponse) DecodeMsgpack(d *msgpack.Decoder) error {
	arrayLen, err := d.DecodeArrayLen()
	if err != nil {
		return err
	}
	if arrayLen != 1 {
		return fmt.Errorf("protocol violation; expected 1 array entry, got %d", arrayLen)
	}
	return d.Decode(&ir.Info)
}
