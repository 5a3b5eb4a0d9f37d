// Package kvstore is a batch sink backed by a bbolt file.
//
// Every table is a top-level bucket. Rows are msgpack-encoded column maps
// stored under an 8-byte big-endian row id drawn from the bucket sequence.
// A generated key is the row id of the insert it follows, unless the row
// already carries a value in that column.
//
// A batch runs in one bbolt update transaction, so it is applied
// all-or-nothing. Raw statements have no meaning here and are rejected
// when queued.
package kvstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/roach88/seedgraph/internal/batch"
)

// ErrRawStatement is returned by AddRawStatement.
var ErrRawStatement = errors.New("kvstore: raw statements are not supported")

// Options configures Open.
type Options struct {
	// IsTesting trades durability for speed.
	IsTesting bool
	Timeout   time.Duration
}

type stmtKind int

const (
	stmtInsert stmtKind = iota
	stmtSelectKey
)

type statement struct {
	kind    stmtKind
	table   string
	columns []batch.Column
	symbol  batch.Symbol
}

// Store is a bbolt database used as a batch.Sink.
type Store struct {
	bdb *bbolt.DB

	mu         sync.Mutex
	queue      []statement
	nextSymbol int
}

// Open creates or opens the bbolt file at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}
	return &Store{bdb: bdb}, nil
}

// Close closes the file.
func (s *Store) Close() error {
	return s.bdb.Close()
}

// Bolt returns the underlying database.
func (s *Store) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *Store) Insert(table string, columns []batch.Column) error {
	if table == "" {
		return errors.New("kvstore: empty table name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, statement{kind: stmtInsert, table: table, columns: append([]batch.Column(nil), columns...)})
	return nil
}

func (s *Store) AddRawStatement(text string) error {
	return fmt.Errorf("%w: %q", ErrRawStatement, text)
}

func (s *Store) SelectGeneratedKey(table, column string) (batch.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSymbol++
	sym := batch.Symbol{ID: s.nextSymbol, Table: table, Column: column}
	s.queue = append(s.queue, statement{kind: stmtSelectKey, table: table, symbol: sym})
	return sym, nil
}

// Reset discards queued statements.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.nextSymbol = 0
}

// Pending returns the number of queued statements.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

type lastRow struct {
	id  []byte
	row map[string]any
}

func (s *Store) Execute(ctx context.Context) ([]any, error) {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.nextSymbol = 0
	s.mu.Unlock()

	if len(queue) == 0 {
		return nil, nil
	}

	var tokens []any
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		var (
			last    = make(map[string]lastRow)
			symbols = make(map[int]any)
		)
		for i, st := range queue {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := tx.CreateBucketIfNotExists([]byte(st.table))
			if err != nil {
				return fmt.Errorf("kvstore: statement %d: %w", i, err)
			}

			switch st.kind {
			case stmtInsert:
				row := make(map[string]any, len(st.columns))
				for _, col := range st.columns {
					if col.Symbol != nil {
						v, ok := symbols[col.Symbol.ID]
						if !ok {
							return fmt.Errorf("kvstore: statement %d: %s referenced before it was generated", i, col.Symbol)
						}
						row[col.Name] = v
						continue
					}
					v, err := col.Resolve()
					if err != nil {
						return fmt.Errorf("kvstore: statement %d: %w", i, err)
					}
					row[col.Name] = v
				}
				seq, err := b.NextSequence()
				if err != nil {
					return fmt.Errorf("kvstore: statement %d: %w", i, err)
				}
				id := rowID(seq)
				if err := putRow(b, id, row); err != nil {
					return fmt.Errorf("kvstore: statement %d: %w", i, err)
				}
				last[st.table] = lastRow{id: id, row: row}

			case stmtSelectKey:
				lr, ok := last[st.table]
				if !ok {
					return fmt.Errorf("kvstore: statement %d: no insert into %s precedes key select", i, st.table)
				}
				v, ok := lr.row[st.symbol.Column]
				if !ok || v == nil {
					v = int64(binary.BigEndian.Uint64(lr.id))
					lr.row[st.symbol.Column] = v
					if err := putRow(b, lr.id, lr.row); err != nil {
						return fmt.Errorf("kvstore: statement %d: %w", i, err)
					}
				}
				symbols[st.symbol.ID] = v
				tokens = append(tokens, st.symbol.Column, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func rowID(seq uint64) []byte {
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, seq)
	return id
}

func putRow(b *bbolt.Bucket, id []byte, row map[string]any) error {
	data, err := encodeRow(row)
	if err != nil {
		return err
	}
	return b.Put(id, data)
}

func encodeRow(row map[string]any) ([]byte, error) {
	flat := make(map[string]any, len(row))
	for k, v := range row {
		if u, ok := v.(uuid.UUID); ok {
			v = u.String()
		}
		flat[k] = v
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(flat); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRow(data []byte) (map[string]any, error) {
	var row map[string]any
	if err := msgpack.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	for k, v := range row {
		row[k] = normalize(v)
	}
	return row, nil
}

// normalize widens decoded msgpack numbers to int64 and float64.
func normalize(v any) any {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= 1<<63-1 {
			return int64(x)
		}
		return x
	case uint:
		return normalize(uint64(x))
	case float32:
		return float64(x)
	}
	return v
}
