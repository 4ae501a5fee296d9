package serializer

import "fmt"

// Serializer encodes values before they are written to the backing connection
// and decodes them again when they are read back.
type Serializer interface {
	// Marshal encodes v. It returns an error if v cannot be represented
	// in the serializer's format (channels, functions, cycles, ...).
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes b into the value pointed to by v.
	Unmarshal(b []byte, v any) error
}

// ByName returns the serializer registered under name ("json" or "msgpack").
func ByName(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return NewJSONSerializer(), nil
	case "msgpack":
		return NewMsgpackSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
