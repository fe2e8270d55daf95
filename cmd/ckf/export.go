package main

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/banshee-data/cubature/internal/ckf"
	"github.com/banshee-data/cubature/internal/fsutil"
)

// exportRow is one line of the -out file.
type exportRow struct {
	Time float64 `json:"time"`
	ckf.Snapshot
	Measurement   []float64 `json:"measurement"`
	Truth         []float64 `json:"truth"`
	PositionError float64   `json:"position_error"`
}

// jsonLinesWriter writes one JSON object per line. Close is idempotent.
type jsonLinesWriter struct {
	w   io.WriteCloser
	enc *json.Encoder
}

func newJSONLinesWriter(fsys fsutil.FileSystem, path string) (*jsonLinesWriter, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if dir := filepath.Dir(path); !fsys.Exists(dir) {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	w, err := fsys.Create(path)
	if err != nil {
		return nil, err
	}
	return &jsonLinesWriter{w: w, enc: json.NewEncoder(w)}, nil
}

func (j *jsonLinesWriter) Write(row exportRow) error {
	return j.enc.Encode(row)
}

func (j *jsonLinesWriter) Close() error {
	if j.w == nil {
		return nil
	}
	err := j.w.Close()
	j.w = nil
	return err
}
