// Command mfverify checks a freshly written MIFARE Classic card against the
// Flipper .nfc dump it was written from: it waits for the card, reads every
// sector back using the dump keys (with a magic-key fallback) and reports
// any data blocks that differ.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/LucaTomei/flipper-miband-nfc-writer/internal/config"
	"github.com/LucaTomei/flipper-miband-nfc-writer/pkg/mfclassic"
)

func main() {
	dumpFile := flag.String("dump", "", "path to the reference .nfc dump")
	configFile := flag.String("config", "", "optional YAML config file")
	readerIndex := flag.Int("reader", -1, "PC/SC reader index (overrides config)")
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "", "log format: text or json (overrides config)")
	yes := flag.Bool("yes", false, "skip the interactive confirmation")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("config error: %v", err)
		}
		cfg = loaded
	}
	if *readerIndex >= 0 {
		cfg.Runtime.ReaderIndex = readerIndex
	}
	if *verbose {
		cfg.Logging.Verbose = verbose
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *dumpFile == "" {
		*dumpFile = cfg.Runtime.DumpFile
	}
	if *dumpFile == "" {
		log.Fatalf("-dump is required (or set runtime.dump_file in the config)")
	}

	// Configure slog
	level := slog.LevelInfo
	if *cfg.Logging.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	reference, err := mfclassic.LoadFile(*dumpFile)
	if err != nil {
		log.Fatalf("dump error: %v", err)
	}
	layout := reference.Layout()
	fmt.Printf("Reference: %s, Mifare Classic %s, %d sectors\n",
		*dumpFile, reference.Type, layout.TotalSectors())
	if len(reference.UID) > 0 {
		fmt.Printf("UID: % X\n", reference.UID)
	}

	if !*yes && !confirm("Verify card against this dump? [y/N] ") {
		fmt.Println("Aborted.")
		return
	}

	adapter, err := mfclassic.NewPCSCAdapter(*cfg.Runtime.ReaderIndex)
	if err != nil {
		log.Fatalf("reader error: %v", err)
	}
	defer adapter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		cancel()
	}()

	verifier := &mfclassic.Verifier{
		Session:   adapter,
		Detector:  adapter,
		Reference: reference,
		Delays: mfclassic.Delays{
			BlockRetry:   cfg.RetryDelay(),
			SectorSettle: cfg.SectorSettle(),
		},
	}
	if *cfg.Runtime.ShowProgress {
		verifier.OnProgress = renderProgress
	}

	result, err := verifier.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			os.Exit(130)
		}
		log.Fatalf("verification error: %v", err)
	}
	if *cfg.Runtime.ShowProgress {
		fmt.Println()
	}

	switch result.State {
	case mfclassic.StateSuccess:
		fmt.Printf("Verification PASSED: %d data blocks match.\n", result.Report.Compared)
	case mfclassic.StateDifferencesFound:
		fmt.Println("Verification FAILED: card data differs from the dump.")
		fmt.Print(mfclassic.FormatReport(result.Report, layout))
		os.Exit(2)
	case mfclassic.StateReadFailed:
		fmt.Printf("Read FAILED: %s\n",
			strings.ReplaceAll(result.Progress.ErrorDetails, "\n", " "))
		fmt.Printf("Sectors read: %d/%d\n",
			result.Progress.SectorsRead, result.Progress.TotalSectors)
		os.Exit(1)
	}
}

// renderProgress redraws a single status line per tracker checkpoint.
func renderProgress(s mfclassic.Snapshot) {
	fmt.Printf("\r%s %3d%%  %-28s", s.Bar(30), s.Percentage(), s.Operation)
}

// confirm reads a single keypress in raw mode. A non-terminal stdin (pipes,
// CI) counts as a yes so scripted runs do not hang.
func confirm(prompt string) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return true
	}
	fmt.Print(prompt)

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting raw mode: %v\r\n", err)
		return false
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return false
	}
	fmt.Printf("%c\r\n", buf[0])
	return buf[0] == 'y' || buf[0] == 'Y'
}
