// Command corpus is the concurrent multi-contract test-runner (spec §1
// names a "test-runner CLI" as an out-of-scope external collaborator;
// this is the ambient tool that drives it over a directory of bytecode
// files rather than one file at a time). Each contract still decompiles
// on its own single-threaded control flow (spec §5); concurrency here is
// only across contracts, one goroutine per file, each independently
// wall-clock-bounded the way spec §5's "external alarm" describes.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"decomp/internal/config"
	"decomp/internal/derrors"
	"decomp/internal/pipeline"
)

// result is one file's outcome, collected under mu so goroutines
// never race on the shared slice.
type result struct {
	path    string
	stats   string
	err     error
	elapsed time.Duration
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: corpus <directory> [config.yaml]")
		os.Exit(1)
	}
	dir := os.Args[1]

	cfg := config.Default()
	if len(os.Args) >= 3 {
		var err error
		cfg, err = config.Load(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	files, err := corpusFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		mu      sync.Mutex
		results []result
	)

	g, _ := errgroup.WithContext(context.Background())
	for _, f := range files {
		f := f
		g.Go(func() error {
			start := time.Now()
			_, stats, err := pipeline.Decompile(f, cfg)
			elapsed := time.Since(start)

			r := result{path: f, err: err, elapsed: elapsed}
			if err == nil {
				r.stats = fmt.Sprintf("%d instrs, %d gotos", stats.NumEVMInstrs, stats.NumGotos)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil // a single contract's failure never aborts the corpus run
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })
	report(results)
}

// corpusFiles walks dir for *.bin/*.hex/*.json candidates, mirroring
// internal/loader's two accepted input shapes (spec §6).
func corpusFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".bin", ".hex", ".json":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, derrors.NewInputError(dir, "walking corpus directory: %v", err)
	}
	return files, nil
}

func report(results []result) {
	colorize := term.IsTerminal(int(os.Stdout.Fd()))
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			if colorize {
				fmt.Printf("\x1b[31mFAIL\x1b[0m %s (%.3fs): %v\n", r.path, r.elapsed.Seconds(), r.err)
			} else {
				fmt.Printf("FAIL %s (%.3fs): %v\n", r.path, r.elapsed.Seconds(), r.err)
			}
			continue
		}
		if colorize {
			fmt.Printf("\x1b[32mOK\x1b[0m   %s (%.3fs): %s\n", r.path, r.elapsed.Seconds(), r.stats)
		} else {
			fmt.Printf("OK   %s (%.3fs): %s\n", r.path, r.elapsed.Seconds(), r.stats)
		}
	}
	fmt.Printf("\n%d/%d succeeded\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}
