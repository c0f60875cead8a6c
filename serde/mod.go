// Package serde defines the primitives to serialize and deserialize (serde)
// the messages exchanged between the participants of a protocol.
//
// A message implementation provides its serialization through a format engine
// that is registered for a given format. The format of an exchange is defined
// by the context, so that the same message definition can support multiple
// encodings.
package serde

import "io"

// Message is the interface a data model should implement to be serialized and
// deserialized.
type Message interface {
	// Serialize returns the serialized form of the message according to the
	// format of the context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a data model from its
// serialized form.
type Factory interface {
	// Deserialize returns the message instantiated from the data according to
	// the format of the context.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// Format is the identifier of a format implementation.
type Format string

const (
	// FormatJSON is the identifier of the JSON format.
	FormatJSON Format = "JSON"
)

// FormatEngine is the interface to implement to encode and decode a specific
// message in a specific format.
type FormatEngine interface {
	// Encode returns the serialized form of the message according to the
	// format of the context.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message instantiated from the data according to the
	// format of the context.
	Decode(ctx Context, data []byte) (Message, error)
}

// Fingerprinter is the interface to implement to expose a deterministic binary
// representation of a data model, so that it can be fed to a hash function.
type Fingerprinter interface {
	// Fingerprint writes a deterministic binary representation of the object
	// to the writer.
	Fingerprint(writer io.Writer) error
}
