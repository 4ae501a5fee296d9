package serializer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgpackSerializer creates a new serializer using msgpack encoding
func NewMsgpackSerializer() Serializer {
	return &msgpackSerializerImpl{}
}

// msgpackSerializerImpl implements the Serializer interface using msgpack.
// Struct fields are encoded by their json tag so values written by the json
// serializer keep the same field names.
type msgpackSerializerImpl struct {
}

func (m msgpackSerializerImpl) Marshal(v any) ([]byte, error) {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m msgpackSerializerImpl) Unmarshal(b []byte, v any) error {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	// Reset clears the struct tag, so set it afterwards
	dec.Reset(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
