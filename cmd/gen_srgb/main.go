package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wudi/pdfstream/cmm"
)

func main() {
	out := flag.String("o", "sRGB.icc", "Output ICC profile")
	flag.Parse()

	data := cmm.SRGB()
	if _, err := cmm.NewICCProfile(data); err != nil {
		fmt.Fprintf(os.Stderr, "gen_srgb: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "gen_srgb: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d bytes\n", *out, len(data))
}
