// Package flashstore simulates a NOR-flash-like storage region over an
// *os.File for internal/fragment's underlying board.Store to persist to
// (spec.md §6 "word-aligned writes, bounded write-per-word count (2),
// bounded page-erase count"), grounded on the Storage trait implemented
// against real NVMC flash in crates/runner-nordic/src/storage.rs:
// word_size/page_size/num_pages/max_word_writes/max_page_erases plus
// read_slice/write_slice/erase_page. Single-writer access across processes
// is enforced with golang.org/x/sys/unix.Flock, repurposing the teacher's
// raw unix syscall usage (internal/uring) from io_uring submission to
// flash-region mutual exclusion — the closest concern x/sys/unix can serve
// in this domain.
package flashstore

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrNotAligned is returned when an offset or length isn't a multiple of
// the storage's word size.
var ErrNotAligned = errors.New("flashstore: not word-aligned")

// ErrOutOfBounds is returned when an access falls outside the storage
// region.
var ErrOutOfBounds = errors.New("flashstore: out of bounds")

// ErrTooManyWrites is returned when a word would be written more times
// than MaxWordWrites since its last erase, mirroring real NOR flash's
// limited per-word write endurance between erases.
var ErrTooManyWrites = errors.New("flashstore: word write limit exceeded")

// ErrTooManyErases is returned once a page has been erased MaxPageErases
// times, simulating flash wear-out.
var ErrTooManyErases = errors.New("flashstore: page erase limit exceeded")

// Index addresses a byte range within the storage as a (page, byte) pair,
// mirroring the upstream StorageIndex.
type Index struct {
	Page int
	Byte int
}

// Storage is a simulated flash region backed by a regular file, with the
// write/erase constraints real NOR flash imposes.
type Storage struct {
	WordSize      int
	PageSize      int
	NumPages      int
	MaxWordWrites int
	MaxPageErases int

	file *os.File

	mu          sync.Mutex
	wordWrites  map[int]int // word offset -> writes since last erase
	pageErases  []int       // per-page erase count
}

// Open creates (if needed) and locks the file at path as a flash region of
// numPages pages of pageSize bytes each, with wordSize-aligned writes,
// maxWordWrites writes per word between erases, and maxPageErases erases
// per page. Flock blocks other processes from opening the same region
// concurrently, the host-process analogue of a flash controller being
// exclusively owned by one platform instance.
func Open(path string, wordSize, pageSize, numPages, maxWordWrites, maxPageErases int) (*Storage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flashstore: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flashstore: lock %s: %w", path, err)
	}
	size := int64(pageSize * numPages)
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
		if err := fillErased(f, info.Size(), size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &Storage{
		WordSize: wordSize, PageSize: pageSize, NumPages: numPages,
		MaxWordWrites: maxWordWrites, MaxPageErases: maxPageErases,
		file:       f,
		wordWrites: make(map[int]int),
		pageErases: make([]int, numPages),
	}, nil
}

// fillErased pads [from, to) with 0xff, NOR flash's erased-state value.
func fillErased(f *os.File, from, to int64) error {
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = 0xff
	}
	for off := from; off < to; off += int64(len(buf)) {
		n := int64(len(buf))
		if off+n > to {
			n = to - off
		}
		if _, err := f.WriteAt(buf[:n], off); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the flock and closes the file.
func (s *Storage) Close() error {
	unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	return s.file.Close()
}

func (s *Storage) offset(index Index, length int) (int, error) {
	if index.Page < 0 || index.Page >= s.NumPages {
		return 0, fmt.Errorf("flashstore: page %d: %w", index.Page, ErrOutOfBounds)
	}
	if index.Byte < 0 || index.Byte+length > s.PageSize {
		return 0, fmt.Errorf("flashstore: byte range [%d, %d) in page %d: %w", index.Byte, index.Byte+length, index.Page, ErrOutOfBounds)
	}
	return index.Page*s.PageSize + index.Byte, nil
}

// ReadSlice reads length bytes at index.
func (s *Storage) ReadSlice(index Index, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, err := s.offset(index, length)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := s.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("flashstore: read: %w", err)
	}
	return buf, nil
}

// WriteSlice writes value at index, word-aligned. Like real NOR flash, a
// write can only clear bits (new byte = old byte & value byte); callers
// must erase the page first to set bits back to 1. Each word touched may
// be written at most MaxWordWrites times since its last erase.
func (s *Storage) WriteSlice(index Index, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, err := s.offset(index, len(value))
	if err != nil {
		return err
	}
	if offset%s.WordSize != 0 || len(value)%s.WordSize != 0 {
		return fmt.Errorf("flashstore: write at %d len %d: %w", offset, len(value), ErrNotAligned)
	}
	existing := make([]byte, len(value))
	if _, err := s.file.ReadAt(existing, int64(offset)); err != nil {
		return fmt.Errorf("flashstore: write: read-modify: %w", err)
	}
	merged := make([]byte, len(value))
	for i := range value {
		merged[i] = existing[i] & value[i]
	}
	for w := offset; w < offset+len(value); w += s.WordSize {
		word := w / s.WordSize
		s.wordWrites[word]++
		if s.wordWrites[word] > s.MaxWordWrites {
			return fmt.Errorf("flashstore: word %d: %w", word, ErrTooManyWrites)
		}
	}
	if _, err := s.file.WriteAt(merged, int64(offset)); err != nil {
		return fmt.Errorf("flashstore: write: %w", err)
	}
	return nil
}

// ErasePage resets page to all-0xff and clears its words' write counters.
func (s *Storage) ErasePage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 0 || page >= s.NumPages {
		return fmt.Errorf("flashstore: erase page %d: %w", page, ErrOutOfBounds)
	}
	if s.pageErases[page] >= s.MaxPageErases {
		return fmt.Errorf("flashstore: page %d: %w", page, ErrTooManyErases)
	}
	s.pageErases[page]++
	buf := make([]byte, s.PageSize)
	for i := range buf {
		buf[i] = 0xff
	}
	if _, err := s.file.WriteAt(buf, int64(page*s.PageSize)); err != nil {
		return fmt.Errorf("flashstore: erase: %w", err)
	}
	firstWord := page * s.PageSize / s.WordSize
	lastWord := (page+1)*s.PageSize/s.WordSize - 1
	for w := firstWord; w <= lastWord; w++ {
		delete(s.wordWrites, w)
	}
	return nil
}
