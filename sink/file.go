package sink

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugolhafner/logstream/logger"
	"github.com/klauspost/compress/zstd"
)

var _ Sink = (*FileSink)(nil)

// FileSink writes each batch to one file below a root directory as
// "key\tvalue\n" lines. The file is written under a temporary name and
// renamed into place, so readers see a complete batch or nothing. The
// directories holding the new entry are synced before WriteBatch returns.
type FileSink struct {
	root        string
	compression Compression
	logger      logger.Logger
	syncDir     func(dir string) error
}

type FileOption func(*FileSink)

func WithCompression(c Compression) FileOption {
	return func(s *FileSink) {
		s.compression = c
	}
}

func WithLogger(l logger.Logger) FileOption {
	return func(s *FileSink) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewFileSink(root string, opts ...FileOption) (*FileSink, error) {
	if root == "" {
		return nil, fmt.Errorf("file sink root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sink root: %w", err)
	}

	s := &FileSink{root: root, logger: logger.NewNoopLogger(), syncDir: syncDir}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "file_sink", "root", root)
	return s, nil
}

func (s *FileSink) Root() string {
	return s.root
}

// FilePath returns where WriteBatch puts path.
func (s *FileSink) FilePath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path)) + s.compression.Extension()
}

func (s *FileSink) WriteBatch(ctx context.Context, path string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return NewWriteError(path, len(records), err)
	}
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return NewWriteError(path, len(records), fmt.Errorf("path escapes sink root"))
	}
	for _, r := range records {
		if strings.ContainsAny(r.Key, "\t\n") || bytes.IndexByte(r.Value, '\n') >= 0 {
			return NewWriteError(path, len(records), fmt.Errorf("record %q contains a delimiter", r.Key))
		}
	}

	target := s.FilePath(path)
	if err := s.writeAtomic(target, records); err != nil {
		s.logger.Error("Batch write failed", "path", path, "records", len(records), "error", err)
		return NewWriteError(path, len(records), err)
	}

	s.logger.Debug("Batch written", "path", path, "records", len(records))
	return nil
}

func (s *FileSink) writeAtomic(target string, records []Record) (err error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	var w io.Writer = f
	var enc *zstd.Encoder
	if s.compression == CompressionZstd {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return err
		}
		w = enc
	}

	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err = bw.WriteString(r.Key); err != nil {
			return err
		}
		if err = bw.WriteByte('\t'); err != nil {
			return err
		}
		if _, err = bw.Write(r.Value); err != nil {
			return err
		}
		if err = bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return err
		}
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	if err = os.Rename(tmp, target); err != nil {
		return err
	}

	// the rename and any directories MkdirAll created are durable once their
	// parents are synced, up to the root
	for d := dir; ; d = filepath.Dir(d) {
		if err := s.syncDir(d); err != nil {
			return fmt.Errorf("sync directory %s: %w", d, err)
		}
		if d == filepath.Clean(s.root) || d == filepath.Dir(d) {
			return nil
		}
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

// ReadFile loads a file written by FileSink, decompressing ".zst" files.
func ReadFile(name string) ([]Record, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(name, CompressionZstd.Extension()) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			return nil, fmt.Errorf("%s: line without key separator", name)
		}
		out = append(out, Record{Key: key, Value: []byte(value)})
	}
	return out, sc.Err()
}
