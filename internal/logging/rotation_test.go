package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.log")
	w := &RotatingWriter{path: path, limit: 32, backups: 2}
	if err := w.open(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for _, line := range []string{"first-line-padding-here\n", "second-line-padding-also\n", "third-line-padding-toooo\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "third-line-padding-toooo\n" {
		t.Fatalf("base file = %q, want third line", got)
	}
	b1, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != "second-line-padding-also\n" {
		t.Fatalf("backup .1 = %q, want second line", b1)
	}
	b2, err := os.ReadFile(path + ".2")
	if err != nil {
		t.Fatal(err)
	}
	if string(b2) != "first-line-padding-here\n" {
		t.Fatalf("backup .2 = %q, want first line", b2)
	}
}

func TestRotatingWriterResumesExistingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(path, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.size != int64(len("existing\n")) {
		t.Fatalf("resumed size = %d, want %d", w.size, len("existing\n"))
	}
	if _, err := w.Write([]byte("appended\n")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "existing\nappended\n" {
		t.Fatalf("file = %q, want append to existing content", got)
	}
}
