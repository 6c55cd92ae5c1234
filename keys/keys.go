// Package keys handles the benchmark's key-sequence files: fixed-width
// big-endian 8-byte integers, loaded fully into memory before a phase
// starts. It also generates sequential key files and converts YCSB traces
// into the binary format.
package keys

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// FileChunkSize is the read granularity for key files.
const FileChunkSize = 131072

// keyBytes is the fixed on-disk width of one key.
const keyBytes = 8

// Load reads an entire key file into memory and verifies it holds exactly
// expect keys. A count mismatch means the file does not belong to this
// benchmark configuration and is fatal before any worker starts.
func Load(path string, expect int) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open key file: %w", err)
	}
	defer f.Close()

	keys := make([]uint64, 0, expect)
	buf := make([]byte, FileChunkSize)
	var offset int64

	for {
		n, readErr := f.ReadAt(buf, offset)
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("read key file at offset %d: %w", offset, readErr)
		}
		if n%keyBytes != 0 {
			return nil, fmt.Errorf(
				"key file %s is truncated: %d trailing bytes", path, n%keyBytes,
			)
		}
		for i := 0; i < n; i += keyBytes {
			keys = append(keys, binary.BigEndian.Uint64(buf[i:i+keyBytes]))
		}
		if readErr == io.EOF {
			break
		}
		offset += int64(n)
	}

	if len(keys) != expect {
		return nil, fmt.Errorf(
			"key file %s holds %d keys, expected %d", path, len(keys), expect,
		)
	}

	return keys, nil
}

// LoadPair loads the initial-load and transaction key files concurrently.
func LoadPair(loadPath, runPath string, initCount, txnCount int) (initKeys, txnKeys []uint64, err error) {
	var g errgroup.Group

	g.Go(func() error {
		var loadErr error
		initKeys, loadErr = Load(loadPath, initCount)
		return loadErr
	})
	g.Go(func() error {
		var runErr error
		txnKeys, runErr = Load(runPath, txnCount)
		return runErr
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return initKeys, txnKeys, nil
}

// Generate writes count sequential keys to w, wrapping at initCount so a
// transaction file only references keys the load phase inserted.
func Generate(w io.Writer, count, initCount uint64) error {
	if initCount == 0 {
		return fmt.Errorf("init count must be positive")
	}

	bw := bufio.NewWriterSize(w, FileChunkSize)
	var buf [keyBytes]byte

	for i := uint64(0); i < count; i++ {
		binary.BigEndian.PutUint64(buf[:], i%initCount)
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("write key %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush keys: %w", err)
	}
	return nil
}

var ycsbKeyPattern = regexp.MustCompile(`usertable user(\d+)`)

// ProcessYCSB extracts the numeric user IDs from a textual YCSB trace and
// writes them to w in the binary key format. It returns the number of
// keys written.
func ProcessYCSB(r io.Reader, w io.Writer) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, FileChunkSize), FileChunkSize)

	bw := bufio.NewWriterSize(w, FileChunkSize)
	var buf [keyBytes]byte
	count := 0

	for scanner.Scan() {
		for _, m := range ycsbKeyPattern.FindAllStringSubmatch(scanner.Text(), -1) {
			id, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				return count, fmt.Errorf("parse user id %q: %w", m[1], err)
			}
			binary.BigEndian.PutUint64(buf[:], id)
			if _, err := bw.Write(buf[:]); err != nil {
				return count, fmt.Errorf("write key: %w", err)
			}
			count++
		}
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read trace: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("flush keys: %w", err)
	}
	return count, nil
}
