package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/catprint/internal/ble"
	"github.com/chaz8081/catprint/internal/client"
	"github.com/chaz8081/catprint/internal/config"
	"github.com/chaz8081/catprint/internal/fetch"
	"github.com/chaz8081/catprint/internal/history"
	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/job"
	"github.com/chaz8081/catprint/internal/printer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/catprint/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	scan := flag.Bool("scan", false, "list printers in range and exit")
	status := flag.Bool("status", false, "print the printer status and exit")
	imagePath := flag.String("image", "", "image file or http(s) URL to print (png, jpeg, gif, bmp, webp)")
	device := flag.String("device", "", "printer address; overrides device.id")
	text := flag.String("text", "", "text to print; \"-\" reads stdin")
	fontSize := flag.Float64("font-size", 0, "text size in points")
	showHistory := flag.Int("history", 0, "list the last N prints and exit")
	dither := flag.String("dither", "", "dither method: threshold, steinberg, bayer, atkinson, pattern, stucki, burkes")
	rotate := flag.Int("rotate", 0, "clockwise rotation: 0, 90, 180 or 270")
	flip := flag.String("flip", "", "mirror: none, h, v or both")
	brightness := flag.Int("brightness", 0, "brightness 0-255 (128 = unchanged)")
	intensity := flag.Int("intensity", 0, "print head energy 1-255")
	fit := flag.Bool("fit", false, "scale wide images down to the print width instead of cropping")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Flags override the file only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device.ID = *device
		case "dither":
			cfg.Print.Dither = *dither
		case "rotate":
			cfg.Print.Rotate = *rotate
		case "flip":
			cfg.Print.Flip = *flip
		case "brightness":
			cfg.Print.Brightness = *brightness
		case "intensity":
			cfg.Print.Intensity = *intensity
		case "font-size":
			cfg.Print.FontSize = *fontSize
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
	// Progress lines stay visible at every log level.
	log.SetOutput(os.Stderr)

	if *showHistory > 0 {
		if err := listHistory(cfg, *showHistory); err != nil {
			log.Fatalf("history: %v", err)
		}
		return
	}

	if !*scan && !*status && *imagePath == "" && *text == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -image, -text, -status, -scan or -history")
		flag.Usage()
		os.Exit(2)
	}
	if *imagePath != "" && *text != "" {
		log.Fatal("-image and -text are mutually exclusive")
	}

	printBanner(cfg)

	adapter := ble.NewTinyGoAdapter()
	ctx := context.Background()

	if *scan {
		runScan(ctx, adapter, cfg)
		return
	}

	c := client.New(adapter, clientOptions(cfg))
	c.StateChange.On(func(st printer.PrinterState) {
		log.Printf("Printer: %s", st)
	})
	c.Error.On(func(err error) {
		slog.Debug("client error", "error", err)
	})

	// Signal handling: a print cannot be aborted midway, so release the
	// link and exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, disconnecting...", sig)
		_ = c.Disconnect()
		os.Exit(1)
	}()

	// Load the source before connecting so a bad file fails fast.
	var (
		img    image.Image
		source string
	)
	if !*status {
		if img, source, err = loadSource(ctx, cfg, *imagePath, *text, *fit); err != nil {
			log.Fatalf("ERROR: %v", err)
		}
	}

	if err := connect(ctx, c, cfg); err != nil {
		log.Fatalf("Failed to connect: %v\n\nCheck that the printer is on and in range, and that Bluetooth access is granted.", err)
	}
	defer c.Disconnect()

	if *status {
		st, err := c.GetStatus(ctx)
		if err != nil {
			log.Printf("ERROR: status: %v", err)
			return
		}
		if st == nil {
			log.Println("Printer did not report a decodable status")
			return
		}
		fmt.Printf("Status: %s\n", st)
		return
	}

	var hist *history.Store
	if cfg.History.Enabled {
		if hist, err = history.Open(cfg.HistoryPath()); err != nil {
			log.Printf("WARNING: print history disabled: %v", err)
		} else {
			defer hist.Close()
		}
	}

	if err := printImage(ctx, c, cfg, hist, img, source); err != nil {
		log.Printf("ERROR: print failed: %v", err)
		_ = c.Disconnect()
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func clientOptions(cfg *config.Config) client.Options {
	opts := client.DefaultOptions()
	opts.NamePrefix = cfg.Device.NamePrefix
	opts.ScanTimeout = time.Duration(cfg.Device.ScanTimeout) * time.Second
	opts.DitherMethod = imaging.DitherMethod(cfg.Print.Dither)
	opts.Intensity = byte(cfg.Print.Intensity)
	opts.ReconnectAttempts = cfg.Reconnect.Attempts
	opts.ReconnectMax = time.Duration(cfg.Reconnect.MaxBackoff) * time.Second
	opts.AutoReconnect = cfg.Reconnect.Auto
	return opts
}

// connect goes straight to a remembered printer when one is configured and
// scans otherwise.
func connect(ctx context.Context, c *client.Client, cfg *config.Config) error {
	start := time.Now()
	if cfg.Device.ID != "" {
		log.Printf("Connecting to %s...", cfg.Device.ID)
		if !c.Reconnect(ctx, cfg.Device.ID) {
			return fmt.Errorf("printer %s not reachable", cfg.Device.ID)
		}
	} else {
		log.Printf("Scanning for %s printers...", cfg.Device.NamePrefix)
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	st := c.State()
	log.Printf("Connected to %s (%s) in %s", st.Device.Name, st.Device.ID, time.Since(start).Round(time.Millisecond))
	return nil
}

func runScan(ctx context.Context, adapter ble.Adapter, cfg *config.Config) {
	log.Printf("Scanning for %ds...", cfg.Device.ScanTimeout)
	devices, err := ble.ScanForDevices(ctx, adapter, time.Duration(cfg.Device.ScanTimeout)*time.Second)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(devices) == 0 {
		fmt.Println("No printers found.")
		return
	}
	for _, d := range devices {
		fmt.Printf("  %-40s %-16s %d dBm\n", d.ID, d.Name, d.RSSI)
	}
}

// loadSource renders text or loads an image file or URL and returns it
// with a label for the history log.
func loadSource(ctx context.Context, cfg *config.Config, path, text string, fit bool) (image.Image, string, error) {
	if text != "" {
		if text == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, "", fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		img, err := imaging.RenderText(text, imaging.TextOptions{FontSize: cfg.Print.FontSize, Margin: 4})
		if err != nil {
			return nil, "", err
		}
		return img, "text: " + firstLine(text), nil
	}

	source := path
	if fetch.IsURL(path) {
		tmpDir, err := os.MkdirTemp("", "catprint-*")
		if err != nil {
			return nil, "", fmt.Errorf("creating temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		log.Printf("Downloading %s...", path)
		local, err := fetch.Download(ctx, path, tmpDir, os.Stderr)
		if err != nil {
			return nil, "", err
		}
		path = local
	}

	img, err := imaging.LoadImage(path)
	if err != nil {
		return nil, "", err
	}
	if fit {
		img = imaging.FitWidth(img, imaging.PrintWidth)
	}
	return img, source, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40]) + "..."
	}
	return s
}

// printImage prints img and records the attempt when hist is non-nil.
func printImage(ctx context.Context, c *client.Client, cfg *config.Config, hist *history.Store, img image.Image, source string) error {
	opts := job.DefaultOptions()
	opts.Dither = imaging.DitherMethod(cfg.Print.Dither)
	opts.Brightness = cfg.Print.Brightness
	opts.Rotation = imaging.Rotation(cfg.Print.Rotate)
	opts.Flip = imaging.FlipMode(cfg.Print.Flip)
	opts.Intensity = byte(cfg.Print.Intensity)

	b := img.Bounds()
	log.Printf("Printing %s (%dx%d)...", source, b.Dx(), b.Dy())
	start := time.Now()
	printErr := c.PrintImage(ctx, img, opts)
	elapsed := time.Since(start)

	if hist != nil {
		e := history.Entry{
			Source:    source,
			Device:    c.State().Device.Name,
			Width:     b.Dx(),
			Height:    b.Dy(),
			Dither:    cfg.Print.Dither,
			Intensity: cfg.Print.Intensity,
			Duration:  elapsed,
		}
		if printErr != nil {
			e.Err = printErr.Error()
		}
		if _, err := hist.Record(ctx, e); err != nil {
			slog.Warn("history record failed", "error", err)
		}
	}

	if printErr != nil {
		return printErr
	}
	log.Printf("Printed in %s", elapsed.Round(time.Millisecond))
	return nil
}

func listHistory(cfg *config.Config, n int) error {
	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	entries, err := hist.Recent(context.Background(), n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No prints recorded.")
		return nil
	}
	for _, e := range entries {
		result := "ok"
		if !e.OK() {
			result = "FAILED: " + e.Err
		}
		fmt.Printf("  %s  %-12s %4dx%-5d %-10s %s  %s\n",
			e.PrintedAt.Format("2006-01-02 15:04"), e.Device, e.Width, e.Height, e.Dither, e.Source, result)
	}
	return nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	device := cfg.Device.ID
	if device == "" {
		device = "scan for " + cfg.Device.NamePrefix + "*"
	}
	fmt.Println("=== catprint ===")
	fmt.Printf("  Device:    %s\n", device)
	fmt.Printf("  Dither:    %s\n", cfg.Print.Dither)
	fmt.Printf("  Intensity: 0x%02X\n", cfg.Print.Intensity)
	fmt.Printf("  Transform: rotate %d, flip %s, brightness %d\n", cfg.Print.Rotate, cfg.Print.Flip, cfg.Print.Brightness)
	if cfg.History.Enabled {
		fmt.Printf("  History:   %s\n", cfg.HistoryPath())
	}
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("================")
}
