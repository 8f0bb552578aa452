// Package codec converts quotes to and from the bytes carried on the Kafka
// topic and in Redis. Every codec keeps an unset value or change distinct
// from zero.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shubham-shewale/quote-stream/pkg/models"
)

// HeaderContentType is the Kafka header naming the codec of a message value.
const HeaderContentType = "content-type"

var ErrUnknownCodec = errors.New("unknown codec")

type Codec interface {
	Name() string
	ContentType() string
	Encode(q *models.Quote) ([]byte, error)
	Decode(b []byte) (*models.Quote, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case MsgPack.Name():
		return MsgPack, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// ByContentType resolves a message header value, falling back to def when the
// header is absent or names no known codec.
func ByContentType(contentType string, def Codec) Codec {
	switch contentType {
	case JSON.ContentType():
		return JSON
	case MsgPack.ContentType():
		return MsgPack
	}
	return def
}

type jsonCodec struct{}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(q *models.Quote) ([]byte, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quote: %w", err)
	}
	return b, nil
}

func (jsonCodec) Decode(b []byte) (*models.Quote, error) {
	var q models.Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &q, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return "msgpack" }
func (msgpackCodec) ContentType() string { return "application/msgpack" }

func (msgpackCodec) Encode(q *models.Quote) ([]byte, error) {
	b, err := msgpack.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quote: %w", err)
	}
	return b, nil
}

func (msgpackCodec) Decode(b []byte) (*models.Quote, error) {
	var q models.Quote
	if err := msgpack.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &q, nil
}
