package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Segment is one log file and the inclusive step range it covers.
type Segment struct {
	Path  string
	First uint64
	Last  uint64
}

// Files lists the segments under dir for prefix, ordered by first step.
// Files whose names do not parse are ignored.
func Files(dir, prefix string) ([]Segment, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	out := make([]Segment, 0, len(matches))
	for _, path := range matches {
		var first, last uint64
		name := strings.TrimPrefix(filepath.Base(path), prefix+"-")
		if _, err := fmt.Sscanf(name, "%d-%d.jsonl.zst", &first, &last); err != nil || last < first {
			continue
		}
		out = append(out, Segment{Path: path, First: first, Last: last})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out, nil
}

// ReadJSONL decodes every line of a compressed JSONL file into a fresh T
// and hands it to fn. Reading stops at the first error fn returns.
func ReadJSONL[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}
