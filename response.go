package tarantool

import (
	"fmt"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"
)

// Header is a response header.
type Header struct {
	// RequestId is the IPROTO_SYNC of the request the response belongs to.
	RequestId uint32
	// Code is OkCode, PushCode or an error code with the
	// iproto.IPROTO_TYPE_ERROR bit set.
	Code uint32
}

// Response is a decoded server response.
type Response struct {
	Header
	// Data contains the IPROTO_DATA array of an untyped response.
	Data []interface{}
	buf  smallBuf
}

// smallInt reads a positive fixint key without going through the decoder.
func smallInt(d *msgpack.Decoder, buf *smallBuf) (int, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return 0, err
	}
	if b <= 127 {
		return int(b), nil
	}
	buf.UnreadByte()
	return d.DecodeInt()
}

// decodeKeys walks a map with iproto keys and calls fn for every entry. fn
// returns false for keys it does not handle, those are skipped.
func decodeKeys(d *msgpack.Decoder, buf *smallBuf,
	fn func(key iproto.Key) (bool, error)) error {
	l, err := d.DecodeMapLen()
	if err != nil {
		return err
	}
	for ; l > 0; l-- {
		cd, err := smallInt(d, buf)
		if err != nil {
			return err
		}
		handled, err := fn(iproto.Key(cd))
		if err != nil {
			return err
		}
		if !handled {
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (resp *Response) decodeHeader(d *msgpack.Decoder) error {
	d.Reset(&resp.buf)
	return decodeKeys(d, &resp.buf, func(key iproto.Key) (bool, error) {
		switch key {
		case iproto.IPROTO_SYNC:
			rid, err := d.DecodeUint64()
			resp.RequestId = uint32(rid)
			return true, err
		case iproto.IPROTO_REQUEST_TYPE:
			code, err := d.DecodeUint64()
			resp.Code = uint32(code)
			return true, err
		}
		return false, nil
	})
}

func (resp *Response) isError() bool {
	return resp.Code != OkCode && resp.Code != PushCode
}

// walkBody decodes the body with decodeData for IPROTO_DATA and builds an
// Error from the error keys. The buffer position is kept, so the body can
// be decoded again.
func (resp *Response) walkBody(decodeData func(d *msgpack.Decoder) error) error {
	offset := resp.buf.Offset()
	defer resp.buf.Seek(offset)

	var errMsg string
	var boxErr *BoxError

	d := newDecoder(&resp.buf)
	err := decodeKeys(d, &resp.buf, func(key iproto.Key) (bool, error) {
		var err error
		switch key {
		case iproto.IPROTO_DATA:
			err = decodeData(d)
		case iproto.IPROTO_ERROR_24:
			errMsg, err = d.DecodeString()
		case iproto.IPROTO_ERROR:
			boxErr, err = decodeBoxError(d)
		default:
			return false, nil
		}
		return true, err
	})
	if err != nil {
		return err
	}
	if resp.isError() {
		return Error{Code: resp.errorCode(), Msg: errMsg, ExtendedInfo: boxErr}
	}
	return nil
}

func (resp *Response) decodeBody() error {
	// An empty map and an error code without a message.
	if resp.buf.Len() <= 2 {
		if resp.isError() {
			return Error{Code: resp.errorCode(), Msg: "unknown error"}
		}
		return nil
	}

	return resp.walkBody(func(d *msgpack.Decoder) error {
		res, err := d.DecodeInterface()
		if err != nil {
			return err
		}
		data, ok := res.([]interface{})
		if !ok {
			return fmt.Errorf("result is not array: %v", res)
		}
		resp.Data = data
		return nil
	})
}

func (resp *Response) decodeBodyTyped(res interface{}) error {
	if resp.buf.Len() <= 0 {
		return nil
	}
	return resp.walkBody(func(d *msgpack.Decoder) error {
		return d.Decode(res)
	})
}

func (resp *Response) errorCode() iproto.Error {
	return iproto.Error(resp.Code &^ uint32(iproto.IPROTO_TYPE_ERROR))
}

// Tuples returns Data as an array of tuples. Scalars returned by Call and
// Eval are wrapped into single-field tuples.
func (resp *Response) Tuples() [][]interface{} {
	res := make([][]interface{}, len(resp.Data))
	for i, t := range resp.Data {
		if tuple, ok := t.([]interface{}); ok {
			res[i] = tuple
		} else {
			res[i] = []interface{}{t}
		}
	}
	return res
}

func (resp *Response) String() string {
	if resp.Code == OkCode {
		return fmt.Sprintf("<%d OK %v>", resp.RequestId, resp.Data)
	}
	return fmt.Sprintf("<%d ERR 0x%x>", resp.RequestId, resp.Code)
}

// discardTuples drops the returned tuples when a caller did not ask for them.
func (resp *Response) discardTuples(returnTuple bool) *Response {
	if resp != nil && !returnTuple {
		resp.Data = []interface{}{}
	}
	return resp
}
