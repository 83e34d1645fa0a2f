// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// TextFormatter implements human-readable output for terminals
type TextFormatter struct {
	colors map[string]*color.Color
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"white":  color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *TextFormatter) Name() string {
	return "text"
}

func (f *TextFormatter) Description() string {
	return "Human-readable run summary with per-file status"
}

func (f *TextFormatter) FileExtension() string {
	return ".txt"
}

// paint colors s unless colors are disabled
func (f *TextFormatter) paint(name, s string, options Options) string {
	if options.NoColor {
		return s
	}
	return f.colors[name].Sprint(s)
}

func (f *TextFormatter) Format(doc *Document, options Options) (string, error) {
	var b strings.Builder

	nameWidth := 4
	for _, fe := range doc.Files {
		nameWidth = max(nameWidth, min(len(fe.Name), 40))
	}

	if len(doc.Files) == 0 {
		b.WriteString("No files found in input directory.\n")
	} else {
		b.WriteString(f.paint("white", fmt.Sprintf("%-10s %-9s %-*s %s", "STATUS", "KIND", nameWidth, "FILE", "DETAILS"), options))
		b.WriteString("\n")
		b.WriteString(f.paint("white", strings.Repeat("-", 10+1+9+1+nameWidth+1+30), options))
		b.WriteString("\n")
	}

	for _, fe := range doc.Files {
		status := fmt.Sprintf("%-10s", strings.ToUpper(fe.Status))
		switch fe.Status {
		case "succeeded":
			status = f.paint("green", status, options)
		case "skipped":
			status = f.paint("yellow", status, options)
		case "failed":
			status = f.paint("red", status, options)
		}
		fmt.Fprintf(&b, "%s %-9s %-*s %s\n", status, fe.Kind, nameWidth, fe.Name, details(fe))
	}

	if options.IncludeMappings {
		for _, fe := range doc.Files {
			if len(fe.Mappings) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s\n", f.paint("cyan", "Mappings for "+fe.Name, options))
			for _, orig := range sortedKeys(fe.Mappings) {
				fmt.Fprintf(&b, "  %-20s %s\n", fe.Mappings[orig], orig)
			}
		}
	}

	t := doc.Totals
	b.WriteString("\n")
	b.WriteString(f.paint("white", "Summary", options))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Files:     %d (%d sanitized, %d skipped, %d failed)\n", t.Files, t.Succeeded, t.Skipped, t.Failed)
	fmt.Fprintf(&b, "  Masked:    %d IP address(es), %d hostname(s)\n", t.IPsMasked, t.HostnamesMasked)
	fmt.Fprintf(&b, "  Pages:     %d watermarked\n", t.PagesStamped)
	if t.MetadataDropped > 0 {
		fmt.Fprintf(&b, "  Metadata:  %d EXIF field(s) dropped\n", t.MetadataDropped)
	}
	if doc.Archive != "" {
		verified := ""
		if doc.Verified {
			verified = ", verified"
		}
		fmt.Fprintf(&b, "  Archive:   %s (%s%s)\n", doc.Archive, formatBytes(doc.ArchiveSize), verified)
	}
	if doc.UploadURI != "" {
		fmt.Fprintf(&b, "  Uploaded:  %s\n", doc.UploadURI)
	}
	fmt.Fprintf(&b, "  Duration:  %s\n", doc.Duration)

	if len(doc.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(f.paint("yellow", "Warnings", options))
		b.WriteString("\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	return b.String(), nil
}

// details summarizes a file entry in one column
func details(fe FileEntry) string {
	switch fe.Status {
	case "skipped":
		return fe.Reason
	case "failed":
		return fe.Error
	}

	var parts []string
	if fe.IPsMasked > 0 || fe.HostnamesMasked > 0 {
		parts = append(parts, fmt.Sprintf("%d IP(s), %d hostname(s) masked", fe.IPsMasked, fe.HostnamesMasked))
	}
	if fe.Pages > 0 {
		parts = append(parts, fmt.Sprintf("%d page(s) watermarked, encrypted", fe.Pages))
	} else if fe.Kind == "document" {
		parts = append(parts, "encrypted")
	}
	if fe.MetadataDropped > 0 {
		parts = append(parts, fmt.Sprintf("%d EXIF field(s) dropped", fe.MetadataDropped))
	}
	if len(parts) == 0 {
		return "watermarked"
	}
	return strings.Join(parts, "; ")
}
