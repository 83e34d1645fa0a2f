// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package help

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// TransformInfo describes one transform for the help listing
type TransformInfo struct {
	Kind        string
	Extensions  []string
	Description string
}

// Transforms lists what happens to each kind of file
var Transforms = []TransformInfo{
	{
		Kind:        "text",
		Extensions:  []string{".txt", ".log", ".xml"},
		Description: "IPv4 addresses become MASKED_IP.n and hostnames become HOST_n, then the watermark line is appended",
	},
	{
		Kind:        "document",
		Extensions:  []string{".pdf"},
		Description: "watermark stamped on every page, then encrypted with the run password",
	},
	{
		Kind:        "image",
		Extensions:  []string{".jpg", ".jpeg", ".png"},
		Description: "watermark text drawn at (10,10), re-encoded without EXIF metadata",
	},
}

// System renders help text
type System struct {
	noColor bool
	colors  map[string]*color.Color
}

// NewSystem creates a new help system
func NewSystem(noColor bool) *System {
	return &System{
		noColor: noColor,
		colors: map[string]*color.Color{
			"title":   color.New(color.FgWhite, color.Bold),
			"header":  color.New(color.FgBlue, color.Bold),
			"item":    color.New(color.FgCyan),
			"example": color.New(color.FgMagenta),
		},
	}
}

func (h *System) println(w io.Writer, name, s string) {
	if h.noColor {
		fmt.Fprintln(w, s)
		return
	}
	h.colors[name].Fprintln(w, s)
}

// ShowGeneralHelp writes usage, options and examples to w
func (h *System) ShowGeneralHelp(w io.Writer) {
	h.println(w, "title", "Ferret Seal - Folder Sanitizer")
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w)
	h.println(w, "header", "USAGE:")
	fmt.Fprintln(w, "  ferret-seal --input <dir> --output <dir> [options]")
	fmt.Fprintln(w)

	h.println(w, "header", "OPTIONS:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  --input\t<dir>\tDirectory whose files are sanitized (required, not descended)")
	fmt.Fprintln(tw, "  --output\t<dir>\tDirectory for sanitized copies and the archive (required, created if missing)")
	fmt.Fprintln(tw, "  --password\t<pw>\tPassword for PDFs and the archive (or FERRET_SEAL_PASSWORD)")
	fmt.Fprintln(tw, "  --watermark\t<text>\tWatermark text (default: CONFIDENTIAL)")
	fmt.Fprintln(tw, "  --font\t<path>\tTrueType font for image watermarks (default: arial.ttf, built-in fallback)")
	fmt.Fprintln(tw, "  --archive-name\t<name>\tArchive file name inside the output directory (default: protected_output.zip)")
	fmt.Fprintln(tw, "  --workers\t<n>\tFiles transformed concurrently (default: 1)")
	fmt.Fprintln(tw, "  --format\t<format>\tReport format: text, json, yaml, markdown (default: text)")
	fmt.Fprintln(tw, "  --report-file\t<path>\tWrite the report to a file instead of stdout")
	fmt.Fprintln(tw, "  --config\t<path>\tPath to configuration file (YAML)")
	fmt.Fprintln(tw, "  --upload\t<uri>\tUpload the archive to s3://bucket/prefix/ or file:///dir/")
	fmt.Fprintln(tw, "  --verify\t\tRe-open the archive, decrypt every member and read back any upload")
	fmt.Fprintln(tw, "  --no-color\t\tDisable colored output")
	fmt.Fprintln(tw, "  --debug\t\tEnable debug logging with per-operation timing")
	fmt.Fprintln(tw, "  --quiet\t\tOnly log warnings and errors")
	fmt.Fprintln(tw, "  --version\t\tShow version information")
	fmt.Fprintln(tw, "  --help\t\tShow this help message")
	tw.Flush()

	fmt.Fprintln(w)
	h.println(w, "header", "TRANSFORMS:")
	h.writeTransforms(w)

	fmt.Fprintln(w)
	h.println(w, "header", "EXAMPLES:")
	h.println(w, "example", "  FERRET_SEAL_PASSWORD=s3cret ferret-seal --input ./case-1234 --output ./sealed")
	h.println(w, "example", "  ferret-seal --input ./logs --output ./out --password s3cret --workers 4 --verify")
	h.println(w, "example", "  ferret-seal --input ./docs --output ./out --upload s3://evidence/case-1234/ --format json")

	fmt.Fprintln(w)
	h.println(w, "header", "CONFIGURATION:")
	fmt.Fprintln(w, "  Project config: ferret-seal.yaml or .ferret-seal.yaml (in current directory)")
	fmt.Fprintln(w, "  User config:    $XDG_CONFIG_HOME/ferret-seal/config.yaml")
	fmt.Fprintln(w, "  Environment:    FERRET_SEAL_CONFIG_DIR - Override config directory")
	fmt.Fprintln(w, "  Flags override config file values.")

	fmt.Fprintln(w)
	h.println(w, "header", "EXIT CODES:")
	fmt.Fprintln(w, "  0  archive written (individual files may have warnings)")
	fmt.Fprintln(w, "  1  run failed (setup, archive or upload error)")
	fmt.Fprintln(w, "  2  invalid flags or configuration")
}

func (h *System) writeTransforms(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range Transforms {
		kind := fmt.Sprintf("  %s", t.Kind)
		if !h.noColor {
			kind = h.colors["item"].Sprint(kind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", kind, strings.Join(t.Extensions, " "), t.Description)
	}
	tw.Flush()
	fmt.Fprintln(w, "  Other files are skipped and listed in the report.")
}
