// Package wal implements the crash-safe, append-only write-ahead log
// spec.md §4.7 describes: a file header (version, sequence) followed by a
// sequence of (compression_flag, length, crc32, payload) records. One
// process holds the file via an OS advisory lock; a corrupted suffix is
// detected and truncated on open, preserving everything before it.
//
// Grounded end to end on Malachite's wal crate (the teacher carries no
// local WAL of its own — Autonity re-derives state from the replicated
// chain rather than a local log), adapted to the teacher's habit of a
// single exported, lock-free type owned by one goroutine (the way core.Core
// owns its state without a mutex): Log has no internal synchronization and
// must be driven from a single goroutine, same as the teacher's Core.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/golang/snappy"
)

const (
	version = uint8(1)

	headerSize     = 1 + 8    // version + sequence
	recordHeadSize = 1 + 8 + 4 // compression flag + length + crc32
)

// ErrLocked is returned by Open when another process already holds the
// log file's advisory lock.
var ErrLocked = errors.New("wal: file is locked by another process")

// ErrBadVersion is returned by Open when the file's header names a version
// this package does not understand.
var ErrBadVersion = errors.New("wal: unsupported header version")

type recordSpan struct {
	start, end int64 // byte offsets bracketing the whole record (header+payload)
}

// Log is one height's write-ahead log. Not safe for concurrent use: the
// owning goroutine is expected to serialize every call, matching spec.md
// §5's single-writer-per-height concurrency model.
type Log struct {
	file     *os.File
	lock     *flock.Flock
	path     string
	sequence uint64
	compress bool
	records  []recordSpan
}

// Open opens (or creates) the log at path, acquiring its advisory lock.
// If the file already exists with a matching header, its records are
// scanned and any corrupted suffix is truncated. If the file does not
// exist, it is created fresh at sequence. compress controls whether future
// Append calls snappy-compress their payload.
func Open(path string, sequence uint64, compress bool) (*Log, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("wal: acquiring lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("wal: opening %s: %w", path, err)
	}

	l := &Log{file: file, lock: lock, path: path, sequence: sequence, compress: compress}

	info, err := file.Stat()
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := l.writeHeader(sequence); err != nil {
			_ = l.Close()
			return nil, err
		}
		return l, nil
	}

	existingSeq, err := l.readHeader()
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	l.sequence = existingSeq
	if err := l.scanAndRepair(); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) writeHeader(sequence uint64) error {
	var buf [headerSize]byte
	buf[0] = version
	binary.BigEndian.PutUint64(buf[1:], sequence)
	if _, err := l.file.WriteAt(buf[:], 0); err != nil {
		return err
	}
	if err := l.file.Truncate(headerSize); err != nil {
		return err
	}
	l.sequence = sequence
	l.records = nil
	return l.file.Sync()
}

func (l *Log) readHeader() (uint64, error) {
	var buf [headerSize]byte
	if _, err := l.file.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("wal: reading header: %w", err)
	}
	if buf[0] != version {
		return 0, ErrBadVersion
	}
	return binary.BigEndian.Uint64(buf[1:]), nil
}

// scanAndRepair walks every record after the header, stopping (and
// truncating the file) at the first bad CRC or short read — spec.md
// §4.7's "a corrupted suffix... can be detected and truncated; entries
// before the corruption are preserved".
func (l *Log) scanAndRepair() error {
	offset := int64(headerSize)
	var records []recordSpan
	for {
		head := make([]byte, recordHeadSize)
		n, err := l.file.ReadAt(head, offset)
		if err == io.EOF && n == 0 {
			break
		}
		if n < recordHeadSize {
			break // truncated header: drop this partial record
		}
		length := binary.BigEndian.Uint64(head[1:9])
		wantCRC := binary.BigEndian.Uint32(head[9:13])

		payload := make([]byte, length)
		n, err = l.file.ReadAt(payload, offset+recordHeadSize)
		if uint64(n) < length {
			break // truncated payload
		}
		if err != nil && err != io.EOF {
			return err
		}
		if crc32.ChecksumIEEE(payload) != wantCRC {
			break // corrupted payload
		}

		end := offset + recordHeadSize + int64(length)
		records = append(records, recordSpan{start: offset, end: end})
		offset = end
	}
	l.records = records
	return l.file.Truncate(offset)
}

// Append writes payload as a new record and returns its index. The record
// is not guaranteed durable until Flush returns successfully, per
// spec.md §4.7.
func (l *Log) Append(payload []byte) (int, error) {
	compressed := l.compress
	body := payload
	if compressed {
		body = snappy.Encode(nil, payload)
	}

	head := make([]byte, recordHeadSize)
	if compressed {
		head[0] = 1
	}
	binary.BigEndian.PutUint64(head[1:9], uint64(len(body)))
	binary.BigEndian.PutUint32(head[9:13], crc32.ChecksumIEEE(body))

	offset, err := l.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := l.file.Write(head); err != nil {
		return 0, err
	}
	if _, err := l.file.Write(body); err != nil {
		return 0, err
	}

	l.records = append(l.records, recordSpan{start: offset, end: offset + recordHeadSize + int64(len(body))})
	return len(l.records) - 1, nil
}

// Flush durably persists every Append call so far.
func (l *Log) Flush() error {
	return l.file.Sync()
}

// Iter returns every record's payload, in append order, decompressed if
// necessary.
func (l *Log) Iter() ([][]byte, error) {
	out := make([][]byte, 0, len(l.records))
	for _, rec := range l.records {
		head := make([]byte, recordHeadSize)
		if _, err := l.file.ReadAt(head, rec.start); err != nil {
			return nil, err
		}
		length := rec.end - rec.start - recordHeadSize
		body := make([]byte, length)
		if _, err := l.file.ReadAt(body, rec.start+recordHeadSize); err != nil {
			return nil, err
		}
		if head[0] == 1 {
			decoded, err := snappy.Decode(nil, body)
			if err != nil {
				return nil, fmt.Errorf("wal: decompressing record: %w", err)
			}
			body = decoded
		}
		out = append(out, body)
	}
	return out, nil
}

// Truncate discards every record from index idx onward.
func (l *Log) Truncate(idx int) error {
	if idx < 0 || idx > len(l.records) {
		return fmt.Errorf("wal: truncate index %d out of range [0,%d]", idx, len(l.records))
	}
	var offset int64 = headerSize
	if idx > 0 {
		offset = l.records[idx-1].end
	}
	if err := l.file.Truncate(offset); err != nil {
		return err
	}
	l.records = l.records[:idx]
	return nil
}

// Restart truncates the entire log and re-initializes it at sequence,
// discarding every record — spec.md §4.7's restart(seq').
func (l *Log) Restart(sequence uint64) error {
	return l.writeHeader(sequence)
}

// Len returns the number of records currently stored.
func (l *Log) Len() int { return len(l.records) }

// SizeBytes returns the file's current size on disk.
func (l *Log) SizeBytes() (int64, error) {
	info, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Sequence returns the height this log is currently accumulating for.
func (l *Log) Sequence() uint64 { return l.sequence }

// Close flushes, releases the advisory lock, and closes the file.
func (l *Log) Close() error {
	flushErr := l.file.Sync()
	closeErr := l.file.Close()
	unlockErr := l.lock.Unlock()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return closeErr
	}
	return unlockErr
}
