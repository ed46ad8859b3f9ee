package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxLine bounds one JSONL record; argv and error text keep entries well
// under it.
const maxLine = 1 << 20

var genesis = digest([]byte("retrack-genesis"))

// Chain is an append-only JSONL audit log. Each entry carries the SHA-256 of
// its predecessor, so an edited, dropped or reordered line breaks the chain.
type Chain struct {
	mu   sync.Mutex
	f    *os.File
	path string
	seq  uint64
	prev string
}

// OpenChain opens or creates the log at path and resumes its chain from
// the last entry.
func OpenChain(path string) (*Chain, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	c := &Chain{path: path, prev: genesis}
	err := scan(path, func(_ int, raw []byte) error {
		var e Entry
		if json.Unmarshal(raw, &e) == nil {
			c.seq, c.prev = e.Seq, e.Hash
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	c.f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return c, nil
}

// Record seals e onto the end of the chain. A failed write leaves the
// chain where it was.
func (c *Chain) Record(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.Seq = c.seq + 1
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	e.PrevHash = c.prev
	e.Hash = seal(e)

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := c.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	c.seq, c.prev = e.Seq, e.Hash
	return nil
}

// Tail returns the last n entries, or all of them when n <= 0.
func (c *Chain) Tail(_ context.Context, n int) ([]Entry, error) {
	return Tail(c.path, n)
}

func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f.Close()
}

// Path returns the log file path.
func (c *Chain) Path() string { return c.path }

// ChainError locates the first break in a chain.
type ChainError struct {
	Line   int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Verify walks the log at path and returns how many entries it checked.
// The first break is reported as a *ChainError. An empty log is valid.
func Verify(path string) (int, error) {
	want := genesis
	var seq uint64
	n := 0
	err := scan(path, func(line int, raw []byte) error {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return &ChainError{Line: line, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		switch {
		case e.Seq != seq+1:
			return &ChainError{Line: line, Reason: fmt.Sprintf("sequence gap: expected %d, got %d", seq+1, e.Seq)}
		case e.PrevHash != want:
			return &ChainError{Line: line, Reason: fmt.Sprintf("prev_hash mismatch: expected %s, got %s", short(want), short(e.PrevHash))}
		}
		if got := seal(e); e.Hash != got {
			return &ChainError{Line: line, Reason: fmt.Sprintf("hash mismatch: expected %s, got %s", short(got), short(e.Hash))}
		}
		want, seq = e.Hash, e.Seq
		n++
		return nil
	})
	if err != nil {
		var ce *ChainError
		if !errors.As(err, &ce) {
			err = fmt.Errorf("read audit log: %w", err)
		}
		return n, err
	}
	return n, nil
}

// Tail returns the last n entries of the log at path, or all of them when
// n <= 0. A missing log has no entries; undecodable lines are skipped.
func Tail(path string, n int) ([]Entry, error) {
	var raws [][]byte
	err := scan(path, func(_ int, raw []byte) error {
		raws = append(raws, append([]byte(nil), raw...))
		if n > 0 && len(raws) > n {
			raws = raws[1:]
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if json.Unmarshal(raw, &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// scan calls fn for each non-blank line with its 1-based line number.
func scan(path string, fn func(line int, raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(line, sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// seal hashes e with its Hash field cleared.
func seal(e Entry) string {
	e.Hash = ""
	data, _ := json.Marshal(e)
	return digest(data)
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
