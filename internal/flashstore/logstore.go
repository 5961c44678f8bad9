// LogStore layers board/store.Store's exact-key API on top of a Storage
// region: a sequential, append-only log of tagged records (tag, key,
// length, data), compacted by erasing and rewriting live entries when the
// log fills up. Deleting a key clears its record's tag bit from live to
// dead rather than erasing anything — the second and last write NOR flash
// allows that word before an erase is required (Storage.MaxWordWrites==2:
// once to write the record live, once to mark it dead).
package flashstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wasefire/wfcore/internal/board/store"
)

const (
	recordHeaderSize = 5 // tag(1) + key(2 LE) + length(2 LE)
	tagLive          = 0x01
	tagDead          = 0x00
	tagErased        = 0xff
)

// ErrValueTooLarge is returned when a single value can't possibly fit in
// one page alongside its header.
var ErrValueTooLarge = errors.New("flashstore: value too large for a page")

// ErrLogFull is returned when the log has no room for a new record even
// after compaction.
var ErrLogFull = errors.New("flashstore: log full")

type logEntry struct {
	page, byte, length int
}

// LogStore implements board/store.Store over a Storage region.
type LogStore struct {
	storage *Storage

	mu         sync.Mutex
	index      map[uint16]logEntry
	page       int
	byte       int
	compacting bool
}

// NewLogStore scans storage for existing records and resumes appending
// after the last one. A fresh Storage scans to an empty log.
func NewLogStore(storage *Storage) (*LogStore, error) {
	s := &LogStore{storage: storage, index: make(map[uint16]logEntry)}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func align(n, word int) int {
	if n%word == 0 {
		return n
	}
	return n + (word - n%word)
}

func (s *LogStore) scan() error {
	s.page, s.byte = 0, 0
	for page := 0; page < s.storage.NumPages; page++ {
		b := 0
		for b+recordHeaderSize <= s.storage.PageSize {
			header, err := s.storage.ReadSlice(Index{Page: page, Byte: b}, recordHeaderSize)
			if err != nil {
				return err
			}
			if header[0] == tagErased {
				break
			}
			tag := header[0]
			key := binary.LittleEndian.Uint16(header[1:3])
			length := int(binary.LittleEndian.Uint16(header[3:5]))
			total := align(recordHeaderSize+length, s.storage.WordSize)
			if tag == tagLive {
				s.index[key] = logEntry{page: page, byte: b, length: length}
			} else {
				delete(s.index, key)
			}
			b += total
		}
		// Appends fill pages in order, and a record that does not fit at
		// the end of a page starts the next one, so the last page holding
		// any record is where appending resumes.
		if b > 0 {
			s.page, s.byte = page, b
		}
	}
	return nil
}

// Insert stores value under key, superseding any existing record.
func (s *LogStore) Insert(key uint16, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(key, value)
}

func (s *LogStore) insertLocked(key uint16, value []byte) error {
	total := align(recordHeaderSize+len(value), s.storage.WordSize)
	if total > s.storage.PageSize {
		return ErrValueTooLarge
	}
	if s.page >= s.storage.NumPages || s.byte+total > s.storage.PageSize {
		if err := s.advanceOrCompact(total); err != nil {
			return err
		}
	}
	if old, ok := s.index[key]; ok {
		if err := s.markDead(old); err != nil {
			return err
		}
	}
	header := make([]byte, recordHeaderSize)
	header[0] = tagLive
	binary.LittleEndian.PutUint16(header[1:3], key)
	binary.LittleEndian.PutUint16(header[3:5], uint16(len(value)))
	record := make([]byte, total)
	copy(record, header)
	copy(record[recordHeaderSize:], value)
	for i := recordHeaderSize + len(value); i < total; i++ {
		record[i] = 0 // padding clears cleanly from the erased 0xff state
	}
	if err := s.storage.WriteSlice(Index{Page: s.page, Byte: s.byte}, record); err != nil {
		return fmt.Errorf("flashstore: insert key %d: %w", key, err)
	}
	s.index[key] = logEntry{page: s.page, byte: s.byte, length: len(value)}
	s.byte += total
	return nil
}

// advanceOrCompact moves to the next page if there's room left in the
// region, or compacts the whole log (erase everything, rewrite only live
// entries) when every page has been tried.
func (s *LogStore) advanceOrCompact(need int) error {
	if s.page < s.storage.NumPages-1 {
		s.page, s.byte = s.page+1, 0
		if need <= s.storage.PageSize {
			return nil
		}
	}
	return s.compact()
}

func (s *LogStore) compact() error {
	if s.compacting {
		return ErrLogFull
	}
	s.compacting = true
	defer func() { s.compacting = false }()
	type live struct {
		key   uint16
		value []byte
	}
	entries := make([]live, 0, len(s.index))
	for key, e := range s.index {
		value, err := s.storage.ReadSlice(Index{Page: e.page, Byte: e.byte + recordHeaderSize}, e.length)
		if err != nil {
			return err
		}
		entries = append(entries, live{key: key, value: value})
	}
	for page := 0; page < s.storage.NumPages; page++ {
		if err := s.storage.ErasePage(page); err != nil {
			return fmt.Errorf("flashstore: compact: %w", err)
		}
	}
	s.index = make(map[uint16]logEntry)
	s.page, s.byte = 0, 0
	for _, e := range entries {
		if err := s.insertLocked(e.key, e.value); err != nil {
			return fmt.Errorf("flashstore: compact: rewriting key %d: %w", e.key, err)
		}
	}
	return nil
}

func (s *LogStore) markDead(e logEntry) error {
	word := make([]byte, s.storage.WordSize)
	for i := range word {
		word[i] = 0xff
	}
	word[0] = tagDead
	return s.storage.WriteSlice(Index{Page: e.page, Byte: e.byte}, word)
}

// Find returns the value for key, if present.
func (s *LogStore) Find(key uint16) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[key]
	if !ok {
		return nil, false, nil
	}
	value, err := s.storage.ReadSlice(Index{Page: e.page, Byte: e.byte + recordHeaderSize}, e.length)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Remove marks key's record dead, if present.
func (s *LogStore) Remove(key uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[key]
	if !ok {
		return nil
	}
	if err := s.markDead(e); err != nil {
		return fmt.Errorf("flashstore: remove key %d: %w", key, err)
	}
	delete(s.index, key)
	return nil
}

// Keys returns every live key in ascending order.
func (s *LogStore) Keys() ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]uint16, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

var _ store.Store = (*LogStore)(nil)
