package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
)

// ErrStop ends a scan early without reporting an error.
var ErrStop = errors.New("stop")

// Files lists the rotated files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanFile hands every line of one compressed JSONL file to fn. ErrStop
// from fn is returned as is.
func ScanFile(path string, fn func(line []byte) error) error {
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
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			if errors.Is(err, ErrStop) {
				return ErrStop
			}
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ScanRecords walks every episode record under dir in file order.
func ScanRecords(dir string, fn func(env.Record) error) error {
	paths, err := Files(dir, EpisodePrefix)
	if err != nil {
		return err
	}
	for _, p := range paths {
		err := ScanFile(p, func(line []byte) error {
			var r env.Record
			if err := json.Unmarshal(line, &r); err != nil {
				return err
			}
			return fn(r)
		})
		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Episode is every record of one episode, start first.
type Episode struct {
	ID      string
	Start   *env.Record
	Records []env.Record
	End     *env.Record
}

// LoadEpisode collects the records of episodeID. A missing start record is
// an error; a missing end record is not.
func LoadEpisode(dir, episodeID string) (Episode, error) {
	ep := Episode{ID: episodeID}
	err := ScanRecords(dir, func(r env.Record) error {
		if r.EpisodeID != episodeID {
			return nil
		}
		switch r.Kind {
		case env.KindEpisodeStart:
			rc := r
			ep.Start = &rc
		case env.KindEpisodeEnd:
			rc := r
			ep.End = &rc
			return ErrStop
		default:
			ep.Records = append(ep.Records, r)
		}
		return nil
	})
	if err != nil {
		return ep, err
	}
	if ep.Start == nil {
		return ep, fmt.Errorf("episode %s: no start record", episodeID)
	}
	return ep, nil
}
