package badger

import (
	"encoding/binary"

	"github.com/poiesic/machinerag/core"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col:"
	vectorPrefix     = "vec:"
)

// makeCollectionKey generates the key holding a collection's settings.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeVectorPrefix generates the prefix shared by every record of a collection.
// Format: prefix:name:
func makeVectorPrefix(name string) []byte {
	return []byte(vectorPrefix + name + ":")
}

// makeVectorKey generates a composite key for a record.
// Format: prefix:name:id
func makeVectorKey(name string, id core.ID) []byte {
	prefix := makeVectorPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian keeps a collection's records in id order
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
