package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/config"
	"github.com/wudi/pdfstream/fonts"
	"github.com/wudi/pdfstream/layout"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/writer"
)

type options struct {
	inputs     []string
	outPath    string
	configPath string
	verbose    bool
	stats      bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdpdf: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "mdpdf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: mdpdf [flags] <input.md|input.html>...\n")
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "YAML configuration file")
	outPath := flag.String("o", "", "Output PDF (defaults to the first input with a .pdf extension)")
	verbose := flag.Bool("v", false, "Log progress to stderr")
	stats := flag.Bool("stats", false, "Print a JSON summary of the written document")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return options{}, fmt.Errorf("missing markdown input")
	}
	opts.inputs = flag.Args()
	opts.configPath = *configPath
	opts.verbose = *verbose
	opts.stats = *stats
	opts.outPath = *outPath
	if opts.outPath == "" {
		in := opts.inputs[0]
		opts.outPath = strings.TrimSuffix(in, filepath.Ext(in)) + ".pdf"
	}
	return opts, nil
}

func newLogger(verbose bool) observability.Logger {
	if !verbose {
		return observability.NopLogger{}
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return observability.NewSlogLogger(slog.New(h))
}

// countingWriter tracks the size of the output file.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type summary struct {
	Output    string `json:"output"`
	Bytes     int64  `json:"bytes"`
	Pages     int    `json:"pages"`
	Elements  int    `json:"structure_elements"`
	Bookmarks int    `json:"bookmarks"`
}

func run(opts options) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	log := newLogger(opts.verbose)
	wc, err := cfg.Writer(log)
	if err != nil {
		return err
	}
	doc, err := writer.New(wc)
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	file, err := os.Create(opts.outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer file.Close()
	out := &countingWriter{w: file}

	b := builder.New(doc, out)
	names, err := registerFonts(b, cfg.Fonts)
	if err != nil {
		return err
	}
	paper, err := cfg.PaperSize()
	if err != nil {
		return err
	}
	m := cfg.Page.Margins
	engine := layout.NewEngine(b,
		layout.WithPaperSize(paper),
		layout.WithMargins(layout.Margins{Top: m.Top, Bottom: m.Bottom, Left: m.Left, Right: m.Right}),
		layout.WithFonts(names[0], names[1], names[2], names[3]),
		layout.WithDefaultFontSize(cfg.Fonts.Size),
		layout.WithLineHeight(cfg.Fonts.LineHeight),
	)

	for _, in := range opts.inputs {
		src, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		engine.BaseDir = filepath.Dir(in)
		render := engine.RenderMarkdown
		if ext := strings.ToLower(filepath.Ext(in)); ext == ".html" || ext == ".htm" {
			render = engine.RenderHTML
		}
		if err := render(src); err != nil {
			return fmt.Errorf("render %s: %w", in, err)
		}
		log.Info("input rendered", observability.String("path", in))
	}
	if err := engine.Finish(); err != nil {
		return fmt.Errorf("finish page: %w", err)
	}
	if err := b.Close(); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if opts.stats {
		s := summary{
			Output:    opts.outPath,
			Bytes:     out.n,
			Pages:     doc.Pages().Count(),
			Bookmarks: b.Outline().Count(0),
		}
		if tags := b.Structure(); tags != nil {
			s.Elements = tags.Len()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}
	return nil
}

// registerFonts loads TrueType faces named by path and returns the font
// names for the regular, bold, italic and mono faces. Standard font names
// are left for the layout engine to register.
func registerFonts(b *builder.Builder, fc config.FontsConfig) ([4]string, error) {
	names := [4]string{fc.Regular, fc.Bold, fc.Italic, fc.Mono}
	if fc.Embed {
		face, err := fonts.GoRegular(b.Document())
		if err != nil {
			return names, fmt.Errorf("embed font: %w", err)
		}
		b.RegisterFont("GoRegular", face)
		return [4]string{"GoRegular", "GoRegular", "GoRegular", "GoRegular"}, nil
	}
	loaded := make(map[string]bool)
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".ttf" && ext != ".otf" || loaded[name] {
			continue
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return names, fmt.Errorf("read font: %w", err)
		}
		face, err := fonts.LoadTrueType(b.Document(), data)
		if err != nil {
			return names, fmt.Errorf("load font %s: %w", name, err)
		}
		b.RegisterFont(name, face)
		loaded[name] = true
	}
	return names, nil
}
