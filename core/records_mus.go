package core

import (
	"errors"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ErrCorruptRecord indicates serialized record bytes could not be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

// IDMUS serializes an ID as an unsigned varint.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

// VectorRecordMUS serializes a VectorRecord.
// Layout: id, name, content type, inserted-at (unix micro), embedding
// (length + raw float32s), labels (length + sorted key/value pairs).
var VectorRecordMUS = vectorRecordMUS{}

type vectorRecordMUS struct{}

func (vectorRecordMUS) Marshal(v VectorRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.ContentType, bs[n:])
	n += varint.Int64.Marshal(timeMicro(v.InsertedAt), bs[n:])
	n += varint.Uint64.Marshal(uint64(len(v.Embedding)), bs[n:])
	for _, f := range v.Embedding {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	keys := sortedKeys(v.Labels)
	n += varint.Uint64.Marshal(uint64(len(keys)), bs[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v.Labels[k], bs[n:])
	}
	return n
}

func (vectorRecordMUS) Unmarshal(bs []byte) (v VectorRecord, n int, err error) {
	var n1 int
	if v.Id, n1, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ContentType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if micros != 0 {
		v.InsertedAt = time.UnixMicro(micros)
	}

	var length uint64
	if length, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	// float32s are fixed width, so a length beyond the buffer is corrupt
	if length > uint64(len(bs[n:])/4) {
		err = ErrCorruptRecord
		return
	}
	if length > 0 {
		v.Embedding = make([]float32, length)
		for i := range v.Embedding {
			if v.Embedding[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}

	if length, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if length > uint64(len(bs[n:])) {
		err = ErrCorruptRecord
		return
	}
	v.Labels = make(map[string]string, length)
	for i := uint64(0); i < length; i++ {
		var key, val string
		if key, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
		if val, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
		v.Labels[key] = val
	}
	return
}

func (vectorRecordMUS) Size(v VectorRecord) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.ContentType)
	size += varint.Int64.Size(timeMicro(v.InsertedAt))
	size += varint.Uint64.Size(uint64(len(v.Embedding)))
	for _, f := range v.Embedding {
		size += raw.Float32.Size(f)
	}
	size += varint.Uint64.Size(uint64(len(v.Labels)))
	for k, val := range v.Labels {
		size += ord.String.Size(k) + ord.String.Size(val)
	}
	return size
}

func timeMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
