package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func entry(op string, exit int) Entry {
	return Entry{
		CallID:      "call-" + op,
		Operation:   op,
		Args:        []string{"project", "list"},
		Tier:        "read",
		Interpreter: "/srv/backend/venv/bin/python",
		ExitCode:    exit,
		Duration:    Millis(1500 * time.Microsecond),
		Cwd:         "/srv/backend",
	}
}

func openChain(t *testing.T, path string) *Chain {
	t.Helper()
	c, err := OpenChain(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	c := openChain(t, path)

	for i := 0; i < 5; i++ {
		if err := c.Record(context.Background(), entry("project list", 0)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	n, err := Verify(path)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if n != 5 {
		t.Errorf("verified %d entries, want 5", n)
	}
}

func TestVerifyDetectsBreaks(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(lines []string) []string
		want   string
	}{
		{
			name: "edited field",
			mangle: func(lines []string) []string {
				lines[1] = strings.Replace(lines[1], `"exit_code":1`, `"exit_code":0`, 1)
				return lines
			},
			want: "hash mismatch",
		},
		{
			name:   "dropped line",
			mangle: func(lines []string) []string { return slices.Delete(lines, 1, 2) },
			want:   "sequence gap",
		},
		{
			name: "swapped lines",
			mangle: func(lines []string) []string {
				lines[0], lines[1] = lines[1], lines[0]
				return lines
			},
			want: "sequence gap",
		},
		{
			name: "garbage line",
			mangle: func(lines []string) []string {
				lines[2] = "not json"
				return lines
			},
			want: "invalid JSON",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "audit.jsonl")
			c := openChain(t, path)
			for i := 0; i < 3; i++ {
				_ = c.Record(context.Background(), entry("project show", 1))
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			lines := tt.mangle(strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"))
			if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
				t.Fatal(err)
			}

			_, err = Verify(path)
			var ce *ChainError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ChainError, got %v", err)
			}
			if !strings.Contains(ce.Reason, tt.want) {
				t.Errorf("reason = %q, want %q", ce.Reason, tt.want)
			}
		})
	}
}

func TestVerifyEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(path, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}
	if n, err := Verify(path); err != nil || n != 0 {
		t.Fatalf("empty log: n = %d, err = %v", n, err)
	}
}

func TestChainResumesAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	first, err := OpenChain(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Record(ctx, entry("init", 0))
	_ = first.Record(ctx, entry("project create", 0))
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openChain(t, path)
	_ = second.Record(ctx, entry("project list", 0))

	if _, err := Verify(path); err != nil {
		t.Fatalf("chain should be valid after reopen: %v", err)
	}

	entries, err := second.Tail(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Seq != 3 || entries[2].Operation != "project list" {
		t.Errorf("last entry = %+v", entries[2])
	}

	last, err := Tail(path, 1)
	if err != nil || len(last) != 1 || last[0].Seq != 3 {
		t.Errorf("Tail(1) = %+v, %v", last, err)
	}
}

func TestTailMissingLog(t *testing.T) {
	entries, err := Tail(filepath.Join(t.TempDir(), "none.jsonl"), 5)
	if err != nil || len(entries) != 0 {
		t.Errorf("Tail(missing) = %v, %v", entries, err)
	}
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	sink, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	ops := []string{"init", "project create", "project list", "project delete"}
	for i, op := range ops {
		e := entry(op, i%2)
		if op == "project delete" {
			e.ExitCode = -1
			e.ErrorKind = "operation_denied"
			e.Error = "tier \"dangerous\" is disabled"
			e.Retry = true
		}
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", op, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening keeps history and the schema init is idempotent.
	sink, err = NewSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	last2, err := sink.Tail(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last2) != 2 {
		t.Fatalf("Tail(2) returned %d entries", len(last2))
	}
	if last2[0].Operation != "project list" || last2[1].Operation != "project delete" {
		t.Errorf("Tail order = %s, %s", last2[0].Operation, last2[1].Operation)
	}
	denied := last2[1]
	if denied.Seq != 4 || denied.ExitCode != -1 || denied.ErrorKind != "operation_denied" || !denied.Retry {
		t.Errorf("denied entry = %+v", denied)
	}
	if !slices.Equal(denied.Args, []string{"project", "list"}) {
		t.Errorf("Args = %q", denied.Args)
	}
	if denied.Time.IsZero() {
		t.Error("Time not stored")
	}

	all, err := sink.Tail(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(ops) {
		t.Errorf("Tail(0) returned %d entries, want %d", len(all), len(ops))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		driver  string
		wantErr bool
	}{
		{DriverJSONL, false},
		{"", false},
		{DriverSQLite, false},
		{DriverNone, false},
		{"postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			sink, err := Open(ctx, tt.driver, filepath.Join(dir, "audit-"+tt.driver))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer sink.Close()
			if err := sink.Record(ctx, entry("version", 0)); err != nil {
				t.Errorf("Record: %v", err)
			}
		})
	}
}
