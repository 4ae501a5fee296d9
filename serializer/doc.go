// Package serializer provides the value codecs used by the store package.
// A Serializer turns arbitrary Go values into the byte strings kept in the
// backing key-value server and back.
//
// Implementations:
//
//   - jsonSerializerImpl: encoding/json, the default. Human readable and
//     compatible with other clients reading the same keys.
//
//   - msgpackSerializerImpl: msgpack via github.com/vmihailenco/msgpack/v5.
//     More compact, and uses json struct tags so both formats agree on
//     field names.
//
// All implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.ByName("msgpack")
//	b, err := s.Marshal(session)
//	err = s.Unmarshal(b, &session)
package serializer
