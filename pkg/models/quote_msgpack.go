package models

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	_ msgpack.CustomEncoder = (*Quote)(nil)
	_ msgpack.CustomDecoder = (*Quote)(nil)
)

// EncodeMsgpack writes the quote as a four-entry map. Unset numbers are
// written as nil so that they never come back as zero.
func (q *Quote) EncodeMsgpack(e *msgpack.Encoder) error {
	if err := e.EncodeMapLen(4); err != nil {
		return err
	}
	if err := encodeKV(e, "company", q.Company); err != nil {
		return err
	}
	if err := encodeFloat(e, "value", q.Value); err != nil {
		return err
	}
	if err := encodeFloat(e, "change", q.Change); err != nil {
		return err
	}
	return encodeKV(e, "time", q.Time)
}

func (q *Quote) DecodeMsgpack(d *msgpack.Decoder) error {
	n, err := d.DecodeMapLen()
	if err != nil {
		return err
	}
	*q = Quote{}
	for i := 0; i < n; i++ {
		key, err := d.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "company":
			q.Company, err = d.DecodeString()
		case "value":
			q.Value, err = decodeFloat(d)
		case "change":
			q.Change, err = decodeFloat(d)
		case "time":
			q.Time, err = d.DecodeString()
		default:
			err = d.Skip()
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

func encodeKV(e *msgpack.Encoder, key, val string) error {
	if err := e.EncodeString(key); err != nil {
		return err
	}
	return e.EncodeString(val)
}

func encodeFloat(e *msgpack.Encoder, key string, v *float64) error {
	if err := e.EncodeString(key); err != nil {
		return err
	}
	if v == nil {
		return e.EncodeNil()
	}
	return e.EncodeFloat64(*v)
}

// decodeFloat accepts nil, a numeric string or any msgpack number.
// Integers are read through their own width before conversion.
func decodeFloat(d *msgpack.Decoder) (*float64, error) {
	c, err := d.PeekCode()
	if err != nil {
		return nil, err
	}
	var f float64
	switch {
	case c == msgpcode.Nil:
		return nil, d.DecodeNil()
	case msgpcode.IsFixedString(c), c == msgpcode.Str8, c == msgpcode.Str16, c == msgpcode.Str32:
		s, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, err
		}
	case c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32, c == msgpcode.Uint64:
		u, err := d.DecodeUint64()
		if err != nil {
			return nil, err
		}
		f = float64(u)
	case msgpcode.IsFixedNum(c), c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		n, err := d.DecodeInt64()
		if err != nil {
			return nil, err
		}
		f = float64(n)
	default:
		if f, err = d.DecodeFloat64(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
