package mtgalog

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mtgalog/mtgalog-go/internal/frame"
	"github.com/mtgalog/mtgalog-go/internal/match"
)

// maxLogLine bounds a single log line during offline parsing. Arena
// payload lines run long but stay well under this.
const maxLogLine = 4 * 1024 * 1024

// ParseFile replays a complete log file offline and returns the display
// records it would have produced, in order.
//
// Enrichment is not performed: card hints appear in each record's
// Unresolved list. WithPatterns and the kind filter options are honored;
// watch-only options (log location, position store, enrichment sizing)
// are ignored.
func ParseFile(ctx context.Context, path string, opts ...Option) ([]DisplayRecord, error) {
	cfg := applyOptions(opts)

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	rec := frame.New(frame.DefaultConfig())
	st := match.NewState()
	classifier := match.NewClassifier(match.Config{Business: cfg.patterns, Logger: log})

	var records []DisplayRecord
	var seq int64
	collect := func(fr *frame.RawFrame) {
		res := classifier.Classify(fr, st)

		annotations := res.Annotations
		if cfg.filter != nil {
			annotations = annotations[:0:0]
			for _, a := range res.Annotations {
				if cfg.filter.Allows(a.Kind) {
					annotations = append(annotations, a)
				}
			}
		}

		var unresolved []string
		seen := make(map[string]struct{}, len(res.Requests))
		for _, req := range res.Requests {
			if _, dup := seen[req.Hint]; dup {
				continue
			}
			seen[req.Hint] = struct{}{}
			unresolved = append(unresolved, req.Hint)
		}

		if len(annotations) == 0 && len(unresolved) == 0 {
			return
		}
		seq++
		records = append(records, DisplayRecord{
			Seq:         seq,
			ReceivedAt:  fr.ReceivedAt,
			Annotations: annotations,
			Unresolved:  unresolved,
		})
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)

	var offset int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		offset += int64(len(scanner.Bytes())) + 1
		for _, fr := range rec.Feed(frame.Line{Text: scanner.Text(), EndOffset: offset}) {
			collect(&fr)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("reading log file: %w", err)
	}
	if fr := rec.Flush(); fr != nil {
		collect(fr)
	}
	return records, nil
}
