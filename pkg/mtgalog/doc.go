// Package mtgalog follows the MTG Arena client's match log and turns it
// into a stream of classified, display-ready match events.
//
// The engine tails the Player log, reconstructs the interleaved
// request/response frames the client writes, classifies each frame
// against a running match-state model, and enriches card references
// through a pluggable card-detail provider. Records come out strictly in
// log order: a record waiting on a slow card lookup holds its place for a
// bounded time, then goes out with placeholders and gets a follow-up
// record if the result arrives later.
//
// # Basic Usage
//
// To follow the live log:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	records, errs, err := mtgalog.Watch(ctx,
//	    mtgalog.WithIncludeKinds(mtgalog.KindZoneTransfer, mtgalog.KindLifeChange),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    select {
//	    case rec, ok := <-records:
//	        if !ok {
//	            return
//	        }
//	        for _, a := range rec.Annotations {
//	            fmt.Printf("%s %+v\n", a.Kind, a)
//	        }
//	    case err, ok := <-errs:
//	        if !ok {
//	            return
//	        }
//	        log.Printf("error: %v", err)
//	    }
//	}
//
// To replay an existing log file offline:
//
//	records, err := mtgalog.ParseFile(ctx, "Player.log")
//
// # Persistence
//
// With WithStateDB the engine stores its resume position and the card
// lookup cache in one SQLite file, so a restart picks up where the last
// run stopped instead of reprocessing the whole log:
//
//	engine, err := mtgalog.NewEngine(
//	    mtgalog.WithStateDB(filepath.Join(stateDir, "mtgalog.db")),
//	)
//
// # Custom Patterns
//
// Outbound client requests can be classified without code changes via
// YAML pattern files, see the [pattern] subpackage:
//
//	set, err := pattern.NewSetFromFile("patterns.yaml")
//	records, errs, err := mtgalog.Watch(ctx, mtgalog.WithPatterns(set))
//
// # Platform Support
//
// Log locations are auto-detected on Windows and macOS where the Arena
// client runs; on other platforms pass WithLogDir or WithLogPath, or set
// the MTGALOG_LOGDIR environment variable.
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with Wizards of the
// Coast.
package mtgalog
