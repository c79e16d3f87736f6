package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/maax3v3/colorfill/internal/color"
	"github.com/maax3v3/colorfill/internal/history"
)

// Subcommands.
const (
	CommandFill  = "fill"  // Apply fills to an image file and save the result.
	CommandServe = "serve" // Serve coloring sessions over HTTP.
)

// Environment variables consulted for defaults. They may also be set in a
// .env file in the working directory.
const (
	EnvAddr        = "COLORFILL_ADDR"
	EnvUndoLimit   = "COLORFILL_UNDO_LIMIT"
	EnvRedoLimit   = "COLORFILL_REDO_LIMIT"
	EnvMaxUploadMB = "COLORFILL_MAX_UPLOAD_MB"
)

// ErrHelp is returned when usage was requested with -h or --help.
var ErrHelp = flag.ErrHelp

// Fill is one tap: a pixel coordinate and the color to paint there.
type Fill struct {
	X, Y  int
	Color color.RGBA
}

// Config holds the parsed CLI arguments.
type Config struct {
	Command string

	// fill
	InPath  string
	OutPath string
	Fills   []Fill
	Undo    int

	// serve
	Addr        string
	MaxUploadMB int

	// shared
	Normalize bool
	UndoLimit int
	RedoLimit int
}

// fillList collects repeated --at flags.
type fillList []Fill

func (l *fillList) String() string {
	parts := make([]string, len(*l))
	for i, f := range *l {
		parts[i] = fmt.Sprintf("%d,%d,%s", f.X, f.Y, f.Color)
	}
	return strings.Join(parts, " ")
}

func (l *fillList) Set(s string) error {
	f, err := ParseFill(s)
	if err != nil {
		return err
	}
	*l = append(*l, f)
	return nil
}

// ParseFill parses "x,y,#rrggbb".
func ParseFill(s string) (Fill, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Fill{}, fmt.Errorf("invalid fill %q: want x,y,#color", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Fill{}, fmt.Errorf("invalid fill %q: x: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Fill{}, fmt.Errorf("invalid fill %q: y: %w", s, err)
	}
	c, err := color.ParseHex(strings.TrimSpace(parts[2]))
	if err != nil {
		return Fill{}, fmt.Errorf("invalid fill %q: %w", s, err)
	}
	return Fill{X: x, Y: y, Color: c}, nil
}

// Parse parses CLI arguments (without the program name) and returns a
// validated Config. Defaults come from the environment, after loading an
// optional .env file.
func Parse(args []string, stderr io.Writer) (Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if len(args) == 0 {
		usage(stderr)
		return Config{}, fmt.Errorf("a command is required (%s or %s)", CommandFill, CommandServe)
	}

	cfg := Config{Command: args[0]}
	fs := flag.NewFlagSet("colorfill "+cfg.Command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	undoDefault, err := envInt(EnvUndoLimit, history.DefaultUndoLimit)
	if err != nil {
		return Config{}, err
	}
	redoDefault, err := envInt(EnvRedoLimit, history.DefaultRedoLimit)
	if err != nil {
		return Config{}, err
	}

	fs.BoolVar(&cfg.Normalize, "normalize", true, "Snap near-white pixels and clean speckles after loading")
	fs.IntVar(&cfg.UndoLimit, "undo-limit", undoDefault, "Number of fills that can be undone")
	fs.IntVar(&cfg.RedoLimit, "redo-limit", redoDefault, "Number of undone steps that can be redone")

	var fills fillList
	switch cfg.Command {
	case CommandFill:
		fs.StringVar(&cfg.InPath, "in", "", "Path to input line art (required, supports PNG, JPEG, WEBP)")
		fs.StringVar(&cfg.OutPath, "out", "", "Path to generated output image (required, must be .png)")
		fs.Var(&fills, "at", "Fill to apply as x,y,#color (repeatable, applied in order)")
		fs.IntVar(&cfg.Undo, "undo", 0, "Number of fills to undo after applying all --at fills")
		fs.Usage = func() {
			fmt.Fprintf(stderr, "Usage: colorfill fill [options]\n\nOptions:\n")
			fs.PrintDefaults()
			fmt.Fprintf(stderr, "\nExample:\n  colorfill fill --in=drawing.png --out=colored.png --at=120,80,#ff0000 --at=40,40,#0af\n")
		}
	case CommandServe:
		maxUpload, err := envInt(EnvMaxUploadMB, 16)
		if err != nil {
			return Config{}, err
		}
		fs.StringVar(&cfg.Addr, "addr", envString(EnvAddr, ":8080"), "Address to listen on")
		fs.IntVar(&cfg.MaxUploadMB, "max-upload-mb", maxUpload, "Largest accepted image upload in megabytes")
		fs.Usage = func() {
			fmt.Fprintf(stderr, "Usage: colorfill serve [options]\n\nOptions:\n")
			fs.PrintDefaults()
		}
	default:
		usage(stderr)
		return Config{}, fmt.Errorf("unknown command %q", cfg.Command)
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrHelp
		}
		return Config{}, err
	}
	cfg.Fills = fills

	if cfg.UndoLimit < 0 {
		return Config{}, fmt.Errorf("--undo-limit must be >= 0, got %d", cfg.UndoLimit)
	}
	if cfg.RedoLimit < 0 {
		return Config{}, fmt.Errorf("--redo-limit must be >= 0, got %d", cfg.RedoLimit)
	}

	switch cfg.Command {
	case CommandFill:
		if cfg.InPath == "" {
			return Config{}, fmt.Errorf("--in is required")
		}
		if cfg.OutPath == "" {
			return Config{}, fmt.Errorf("--out is required")
		}
		if ext := strings.ToLower(filepath.Ext(cfg.OutPath)); ext != ".png" {
			return Config{}, fmt.Errorf("--out must be a .png file, got %q", ext)
		}
		if cfg.Undo < 0 {
			return Config{}, fmt.Errorf("--undo must be >= 0, got %d", cfg.Undo)
		}
	case CommandServe:
		if cfg.Addr == "" {
			return Config{}, fmt.Errorf("--addr must not be empty")
		}
		if cfg.MaxUploadMB <= 0 {
			return Config{}, fmt.Errorf("--max-upload-mb must be > 0, got %d", cfg.MaxUploadMB)
		}
	}

	return cfg, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: colorfill <command> [options]\n\nCommands:\n")
	fmt.Fprintf(w, "  %-6s apply fills to an image file\n", CommandFill)
	fmt.Fprintf(w, "  %-6s serve coloring sessions over HTTP\n", CommandServe)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
