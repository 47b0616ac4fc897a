package serde

type Serde[T any] interface {
	Serialiser[T]
	Deserialiser[T]
}

// Serialiser encodes a value headed for partition.
type Serialiser[T any] interface {
	Serialise(partition string, value T) ([]byte, error)
}

// Deserialiser decodes a raw entry fetched from partition.
type Deserialiser[T any] interface {
	Deserialise(partition string, data []byte) (T, error)
}
