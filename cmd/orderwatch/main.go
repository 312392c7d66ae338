// Command orderwatch tails the order ledger file and sends each batch of new
// orders to a printer. Run it next to the server on the machine wired to the
// kitchen printer.
package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Appends come in bursts (one write per order block); debounce so a burst
// prints once.
const debounce = 2 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	path := flag.String("orders", envOr("ORDERS_PATH", "orders.txt"), "path to the order ledger file")
	printer := flag.String("printer", "", "printer name passed to lp -d (default printer if empty)")
	flag.Parse()

	abs, err := filepath.Abs(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve ledger path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create watcher")
	}
	defer watcher.Close()

	// Watch the directory, not the file: the server creates the ledger
	// lazily and editors may replace it.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		log.Fatal().Err(err).Msg("failed to watch ledger directory")
	}
	log.Info().Str("path", abs).Msg("watching order ledger")

	// Start at the current end of file so old orders are not reprinted.
	offset := currentSize(abs)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			next, err := printNewOrders(abs, *printer, offset)
			if err != nil {
				log.Error().Err(err).Msg("print failed")
				continue
			}
			offset = next

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// printNewOrders sends the bytes appended since offset to lp and returns the
// new offset. A shrunk file means the ledger was replaced; start over.
func printNewOrders(path, printer string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	size := info.Size()
	if size < offset {
		offset = 0
	}
	if size == offset {
		return offset, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	tail, err := io.ReadAll(f)
	if err != nil {
		return offset, err
	}

	args := []string{"-"}
	if printer != "" {
		args = append([]string{"-d", printer}, args...)
	}
	cmd := exec.Command("lp", args...)
	cmd.Stdin = bytes.NewReader(tail)
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Str("output", string(out)).Msg("lp output")
		return offset, err
	}
	log.Info().Int("bytes", len(tail)).Msg("sent new orders to printer")
	return size, nil
}

func currentSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
