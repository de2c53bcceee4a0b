// Package config handles pdfstream configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/cmm"
	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/writer"
)

// Config is the root configuration structure.
type Config struct {
	Document DocumentConfig `yaml:"document"`
	Page     PageConfig     `yaml:"page"`
	Fonts    FontsConfig    `yaml:"fonts"`
	Output   OutputConfig   `yaml:"output"`
}

// DocumentConfig holds document level settings.
type DocumentConfig struct {
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Subject  string `yaml:"subject"`
	Keywords string `yaml:"keywords"`
	Lang     string `yaml:"lang"`
	Version  string `yaml:"version"`
	Tagged   bool   `yaml:"tagged"`

	// Profiles are conformance levels such as "PDF/A-2u" or "PDF/UA-1".
	Profiles []string `yaml:"profiles,omitempty"`

	// ICCProfile is a path to the output intent profile, relative to the
	// configuration file.
	ICCProfile      string `yaml:"icc_profile"`
	OutputCondition string `yaml:"output_condition"`
}

// PageConfig holds page geometry.
type PageConfig struct {
	Paper     string        `yaml:"paper"`
	Landscape bool          `yaml:"landscape"`
	Margins   MarginsConfig `yaml:"margins"`
}

// MarginsConfig holds page margins in points.
type MarginsConfig struct {
	Top    float64 `yaml:"top"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
	Right  float64 `yaml:"right"`
}

// FontsConfig selects fonts. Each face is a standard font name or a path to
// a TrueType file; Embed replaces every face by the built-in Go typeface.
type FontsConfig struct {
	Regular    string  `yaml:"regular"`
	Bold       string  `yaml:"bold"`
	Italic     string  `yaml:"italic"`
	Mono       string  `yaml:"mono"`
	Size       float64 `yaml:"size"`
	LineHeight float64 `yaml:"line_height"`
	Embed      bool    `yaml:"embed"`
}

// OutputConfig holds serialization settings.
type OutputConfig struct {
	Deterministic bool `yaml:"deterministic"`
	Metadata      bool `yaml:"metadata"`
	// OmitID drops the trailer /ID outside PDF/A and PDF/X.
	OmitID bool `yaml:"omit_id"`

	// Filters maps a stream kind ("content", "image", "font", "default")
	// to filter names applied in order.
	Filters map[string][]string `yaml:"filters,omitempty"`

	// Compression is the flate level; zero selects the default level.
	Compression int `yaml:"compression"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Document: DocumentConfig{
			Lang:    "en",
			Version: string(writer.PDF17),
			Tagged:  true,
		},
		Page: PageConfig{
			Paper: "a4",
			Margins: MarginsConfig{
				Top:    50,
				Bottom: 50,
				Left:   50,
				Right:  50,
			},
		},
		Fonts: FontsConfig{
			Regular:    "Helvetica",
			Bold:       "Helvetica-Bold",
			Italic:     "Helvetica-Oblique",
			Mono:       "Courier",
			Size:       11,
			LineHeight: 1.3,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Document.ICCProfile != "" && !filepath.IsAbs(cfg.Document.ICCProfile) {
		cfg.Document.ICCProfile = filepath.Join(filepath.Dir(path), cfg.Document.ICCProfile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var versions = map[string]writer.PDFVersion{
	"1.3": writer.PDF13,
	"1.4": writer.PDF14,
	"1.5": writer.PDF15,
	"1.6": writer.PDF16,
	"1.7": writer.PDF17,
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, ok := versions[c.Document.Version]; !ok {
		return fmt.Errorf("invalid pdf version %q", c.Document.Version)
	}
	for _, p := range c.Document.Profiles {
		if _, err := compliance.ParseProfile(p); err != nil {
			return err
		}
	}
	if _, err := c.PaperSize(); err != nil {
		return err
	}
	m := c.Page.Margins
	if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
		return fmt.Errorf("negative page margin")
	}
	if c.Fonts.Size <= 0 {
		return fmt.Errorf("invalid font size %v", c.Fonts.Size)
	}
	return nil
}

// PaperSize returns the configured page size.
func (c *Config) PaperSize() (builder.PaperSize, error) {
	p, err := builder.Paper(c.Page.Paper)
	if err != nil {
		return p, err
	}
	if c.Page.Landscape {
		p = p.Landscape()
	}
	return p, nil
}

// Writer builds the document configuration. PDF/UA implies a tagged
// document; PDF/A without a configured profile gets an sRGB output intent.
func (c *Config) Writer(log observability.Logger) (writer.Config, error) {
	if err := c.Validate(); err != nil {
		return writer.Config{}, err
	}
	d := c.Document
	wc := writer.Config{
		Version:          versions[d.Version],
		Filters:          c.Output.Filters,
		CompressionLevel: c.Output.Compression,
		Deterministic:    c.Output.Deterministic,
		Tagged:           d.Tagged,
		Lang:             d.Lang,
		OutputCondition:  d.OutputCondition,
		Metadata:         c.Output.Metadata,
		OmitID:           c.Output.OmitID,
		Info: writer.Info{
			Title:    d.Title,
			Author:   d.Author,
			Subject:  d.Subject,
			Keywords: d.Keywords,
			Creator:  "mdpdf",
		},
		Logger: log,
	}
	pdfa := false
	for _, name := range d.Profiles {
		p, _ := compliance.ParseProfile(name)
		wc.Profiles = append(wc.Profiles, p)
		pdfa = pdfa || p.IsPDFA()
		if p == compliance.PDFUA1 {
			wc.Tagged = true
		}
	}
	if d.ICCProfile != "" {
		data, err := os.ReadFile(d.ICCProfile)
		if err != nil {
			return writer.Config{}, fmt.Errorf("failed to read icc profile: %w", err)
		}
		wc.ICCProfile = data
	} else if pdfa {
		wc.ICCProfile = cmm.SRGB()
		if wc.OutputCondition == "" {
			wc.OutputCondition = cmm.SRGBName
		}
	}
	return wc, nil
}
