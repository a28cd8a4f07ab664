// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package store

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/slice"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned when an execution is not in the store.
var ErrNotFound = errors.New("not found")

var (
	executionPrefix = []byte("exec/")
	slicePrefix     = []byte("slice/")
)

// Record summarises a slice: its boundaries, its size and the hashes of its
// images.  Slices are derived from their execution, so only their summaries
// are stored.
type Record struct {
	Index      uint
	FirstEid   uint32
	PostEid    uint32
	EventRows  uint
	MemoryRows uint
	FrameRows  uint
	PreState   slice.State
	PostState  slice.State
	PreImage   [32]byte
	PostImage  [32]byte
	IsLast     bool
}

// RecordOf summarises a given slice.
func RecordOf(s *slice.Slice) Record {
	return Record{
		Index:      s.Index,
		FirstEid:   s.PreState.Eid,
		PostEid:    s.PostState.Eid,
		EventRows:  s.Events.Len(),
		MemoryRows: s.Memory.Len(),
		FrameRows:  s.Frames.Len(),
		PreState:   s.PreState,
		PostState:  s.PostState,
		PreImage:   s.PreImage.Hash(),
		PostImage:  s.PostImage.Hash(),
		IsLast:     s.IsLast,
	}
}

// Store persists recorded executions, and the summaries of their slices, in
// LevelDB.  LevelDB handles its own synchronisation.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a store at a given path.  An empty path gives an
// in-memory store.
func Open(path string) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	//
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	//
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	//
	return &Store{db}, nil
}

// Close the store.
func (p *Store) Close() error {
	return p.db.Close()
}

// PutExecution stores a recorded execution, returning its identifier (the
// hash of its encoding).
func (p *Store) PutExecution(binf *binfile.BinaryFile) (string, error) {
	data, err := binf.MarshalBinary()
	if err != nil {
		return "", err
	}
	//
	hash := blake2b.Sum256(data)
	id := hex.EncodeToString(hash[:])
	//
	if err := p.db.Put(executionKey(id), data, nil); err != nil {
		return "", fmt.Errorf("put execution %s: %w", id, err)
	}
	//
	return id, nil
}

// GetExecution retrieves a recorded execution.
func (p *Store) GetExecution(id string) (*binfile.BinaryFile, error) {
	var binf binfile.BinaryFile
	//
	data, err := p.db.Get(executionKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	} else if err := binf.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("execution %s: %w", id, err)
	}
	//
	return &binf, nil
}

// Executions returns the identifiers of every stored execution, in order.
func (p *Store) Executions() ([]string, error) {
	var ids []string
	//
	iter := p.db.NewIterator(util.BytesPrefix(executionPrefix), nil)
	defer iter.Release()
	//
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(executionPrefix):]))
	}
	//
	return ids, iter.Error()
}

// PutSlices stores the summaries of the slices of a given execution,
// replacing any stored previously.
func (p *Store) PutSlices(id string, slices []*slice.Slice) error {
	batch := new(leveldb.Batch)
	//
	if err := p.deleteSlices(id, batch); err != nil {
		return err
	}
	//
	for _, s := range slices {
		var buffer bytes.Buffer
		//
		if err := gob.NewEncoder(&buffer).Encode(RecordOf(s)); err != nil {
			return err
		}
		//
		batch.Put(sliceKey(id, s.Index), buffer.Bytes())
	}
	//
	return p.db.Write(batch, nil)
}

// Slices returns the stored slice summaries of a given execution, in order.
func (p *Store) Slices(id string) ([]Record, error) {
	var records []Record
	//
	iter := p.db.NewIterator(util.BytesPrefix(slicesPrefix(id)), nil)
	defer iter.Release()
	//
	for iter.Next() {
		var record Record
		//
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&record); err != nil {
			return nil, fmt.Errorf("slice %x: %w", iter.Key(), err)
		}
		//
		records = append(records, record)
	}
	//
	return records, iter.Error()
}

// Replay re-derives the slices of a stored execution (using the configuration
// under which it was recorded), and checks they agree with the stored
// summaries.
func (p *Store) Replay(id string, registry *host.Registry) ([]*slice.Slice, error) {
	binf, err := p.GetExecution(id)
	if err != nil {
		return nil, err
	}
	//
	cfg, err := binf.Config()
	if err != nil {
		return nil, err
	}
	//
	m, err := wasm.Compile(cfg, registry, binf.Execution.Module, binf.Execution.Entry)
	if err != nil {
		return nil, err
	}
	//
	slices, err := slice.Split(cfg, m, binf.Execution.Trace)
	if err != nil {
		return nil, err
	}
	//
	records, err := p.Slices(id)
	if err != nil {
		return nil, err
	} else if len(records) != len(slices) {
		return nil, fmt.Errorf("execution %s has %d stored slices, but %d derived", id, len(records), len(slices))
	}
	//
	for i, s := range slices {
		if RecordOf(s) != records[i] {
			return nil, fmt.Errorf("execution %s: slice %d differs from stored", id, i)
		}
	}
	//
	log.Debugf("replayed %d slices of execution %s", len(slices), id)
	//
	return slices, nil
}

func (p *Store) deleteSlices(id string, batch *leveldb.Batch) error {
	iter := p.db.NewIterator(util.BytesPrefix(slicesPrefix(id)), nil)
	defer iter.Release()
	//
	for iter.Next() {
		batch.Delete(bytes.Clone(iter.Key()))
	}
	//
	return iter.Error()
}

func executionKey(id string) []byte {
	return append(bytes.Clone(executionPrefix), id...)
}

func slicesPrefix(id string) []byte {
	return fmt.Appendf(bytes.Clone(slicePrefix), "%s/", id)
}

// Slice keys are zero padded so that they are ordered by index.
func sliceKey(id string, index uint) []byte {
	return fmt.Appendf(slicesPrefix(id), "%08d", index)
}
