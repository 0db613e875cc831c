package tarantool

import (
	"github.com/vmihailenco/msgpack/v5"
)

// IntKey is a single part integer key.
type IntKey struct {
	I int
}

func (k IntKey) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode([]interface{}{k.I})
}

// UintKey is a single part unsigned integer key.
type UintKey struct {
	I uint
}

func (k UintKey) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode([]interface{}{k.I})
}

// StringKey is a single part string key.
type StringKey struct {
	S string
}

func (k StringKey) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode([]interface{}{k.S})
}

// IntIntKey is a two part integer key.
type IntIntKey struct {
	I1, I2 int
}

func (k IntIntKey) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode([]interface{}{k.I1, k.I2})
}

// Update operators, see box.space.update.
const (
	opAdd      = "+"
	opSubtract = "-"
	opAnd      = "&"
	opOr       = "|"
	opXor      = "^"
	opSplice   = ":"
	opInsert   = "!"
	opDelete   = "#"
	opAssign   = "="
)

// Op is a single update operation: [op, field, arg] or, for a splice,
// [":", field, pos, len, replace].
type Op struct {
	Op    string
	Field int
	Arg   interface{}
	// Pos, Len and Replace are used by the splice operation only.
	Pos     int
	Len     int
	Replace string
}

func (o Op) EncodeMsgpack(enc *msgpack.Encoder) error {
	if o.Op == opSplice {
		return enc.Encode([]interface{}{o.Op, o.Field, o.Pos, o.Len, o.Replace})
	}
	return enc.Encode([]interface{}{o.Op, o.Field, o.Arg})
}

// Operations is an ordered list of update operations. Fields are numbered
// from 1, negative numbers count from the end of the tuple.
type Operations struct {
	ops []Op
}

// NewOperations returns an empty list.
func NewOperations() *Operations {
	return &Operations{}
}

// Len returns the count of operations, a nil list is empty.
func (ops *Operations) Len() int {
	if ops == nil {
		return 0
	}
	return len(ops.ops)
}

func (ops *Operations) push(op Op) *Operations {
	ops.ops = append(ops.ops, op)
	return ops
}

// Add adds arg to the numeric field.
func (ops *Operations) Add(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opAdd, Field: field, Arg: arg})
}

// Subtract subtracts arg from the numeric field.
func (ops *Operations) Subtract(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opSubtract, Field: field, Arg: arg})
}

func (ops *Operations) BitwiseAnd(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opAnd, Field: field, Arg: arg})
}

func (ops *Operations) BitwiseOr(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opOr, Field: field, Arg: arg})
}

func (ops *Operations) BitwiseXor(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opXor, Field: field, Arg: arg})
}

// Splice replaces length bytes of the string field starting at pos.
func (ops *Operations) Splice(field, pos, length int, replace string) *Operations {
	return ops.push(Op{Op: opSplice, Field: field, Pos: pos, Len: length, Replace: replace})
}

// Insert inserts a new field before the field.
func (ops *Operations) Insert(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opInsert, Field: field, Arg: arg})
}

// Delete removes arg fields starting from the field.
func (ops *Operations) Delete(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opDelete, Field: field, Arg: arg})
}

// Assign sets the field to arg.
func (ops *Operations) Assign(field int, arg interface{}) *Operations {
	return ops.push(Op{Op: opAssign, Field: field, Arg: arg})
}

// EncodeMsgpack encodes the list as an array, a nil list is an empty one.
func (ops *Operations) EncodeMsgpack(enc *msgpack.Encoder) error {
	return ops.encodeOrEmpty(enc)
}

func (ops *Operations) encodeOrEmpty(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(ops.Len()); err != nil {
		return err
	}
	for i := 0; i < ops.Len(); i++ {
		if err := ops.ops[i].EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	return nil
}
