// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/machinerag/core"
)

// CollectionInfo describes a collection's fixed settings.
type CollectionInfo struct {
	Name      string
	Dimension int
	Metric    Metric
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(record *core.VectorRecord) []byte {
	buf := make([]byte, core.VectorRecordMUS.Size(*record))
	core.VectorRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
func UnmarshalVectorRecord(data []byte) (*core.VectorRecord, error) {
	record, _, err := core.VectorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalCollectionInfo serializes a CollectionInfo to bytes.
func MarshalCollectionInfo(info CollectionInfo) []byte {
	size := ord.String.Size(info.Name) +
		varint.Int64.Size(int64(info.Dimension)) +
		ord.String.Size(string(info.Metric))
	buf := make([]byte, size)
	n := ord.String.Marshal(info.Name, buf)
	n += varint.Int64.Marshal(int64(info.Dimension), buf[n:])
	ord.String.Marshal(string(info.Metric), buf[n:])
	return buf
}

// UnmarshalCollectionInfo deserializes a CollectionInfo from bytes.
func UnmarshalCollectionInfo(data []byte) (CollectionInfo, error) {
	var info CollectionInfo
	name, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	dim, n1, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	n += n1
	metric, _, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	info.Name, info.Dimension, info.Metric = name, int(dim), Metric(metric)
	return info, nil
}
