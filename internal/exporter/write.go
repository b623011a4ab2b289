package exporter

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
)

// atomicWriter writes lines to a temp file beside the destination and
// renames it into place on Commit. Abort (or a failed Commit) removes the
// temp file, so the destination is either the previous file or the complete
// new one.
type atomicWriter struct {
	path string
	tmp  *os.File
	buf  *bufio.Writer
	sum  hash.Hash
	done bool
}

func newAtomicWriter(path string) (*atomicWriter, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hfexport-*")
	if err != nil {
		return nil, err
	}
	sum := sha256.New()
	return &atomicWriter{
		path: path,
		tmp:  tmp,
		buf:  bufio.NewWriter(io.MultiWriter(tmp, sum)),
		sum:  sum,
	}, nil
}

// WriteLine writes s followed by a newline. s is written as-is, embedded
// newlines included.
func (w *atomicWriter) WriteLine(s string) error {
	if _, err := w.buf.WriteString(s); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// Commit flushes, closes and renames the temp file. It returns the hex
// SHA-256 of the written bytes.
func (w *atomicWriter) Commit() (string, error) {
	if err := w.buf.Flush(); err != nil {
		w.Abort()
		return "", err
	}
	if err := w.tmp.Chmod(0o644); err != nil {
		w.Abort()
		return "", err
	}
	if err := w.tmp.Close(); err != nil {
		w.Abort()
		return "", err
	}
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		w.done = true
		_ = os.Remove(w.tmp.Name())
		return "", err
	}
	w.done = true
	return hex.EncodeToString(w.sum.Sum(nil)), nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (w *atomicWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
}
