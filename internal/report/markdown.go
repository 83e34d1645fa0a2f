// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// MarkdownFormatter renders the run summary as GitHub-flavored markdown,
// suitable for attaching to a ticket alongside the archive
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (f *MarkdownFormatter) Name() string {
	return "markdown"
}

func (f *MarkdownFormatter) Description() string {
	return "Markdown summary for tickets and pull requests"
}

func (f *MarkdownFormatter) FileExtension() string {
	return ".md"
}

func (f *MarkdownFormatter) Format(doc *Document, options Options) (string, error) {
	var sb strings.Builder
	md := markdown.NewMarkdown(&sb)

	md.H1("Ferret Seal Report")
	md.PlainText("")
	f.writeHeader(md, doc)
	f.writeFiles(md, doc)
	if options.IncludeMappings {
		f.writeMappings(md, doc)
	}
	f.writeWarnings(md, doc)

	if err := md.Build(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) writeHeader(md *markdown.Markdown, doc *Document) {
	t := doc.Totals
	rows := [][]string{
		{"Input", "`" + doc.InputDir + "`"},
		{"Started", doc.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", doc.Duration},
		{"Files", strconv.Itoa(t.Files)},
		{"Sanitized", strconv.Itoa(t.Succeeded)},
		{"Skipped", strconv.Itoa(t.Skipped)},
		{"Failed", strconv.Itoa(t.Failed)},
		{"IP addresses masked", strconv.Itoa(t.IPsMasked)},
		{"Hostnames masked", strconv.Itoa(t.HostnamesMasked)},
		{"Pages watermarked", strconv.Itoa(t.PagesStamped)},
	}
	if doc.Archive != "" {
		rows = append(rows, []string{"Archive", "`" + doc.Archive + "` (" + formatBytes(doc.ArchiveSize) + ")"})
	}
	if doc.UploadURI != "" {
		rows = append(rows, []string{"Uploaded to", "`" + doc.UploadURI + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case t.Failed > 0:
		md.Warningf("%d file(s) could not be sanitized and are not in the archive.", t.Failed)
	case doc.Verified:
		md.Tip("Archive verified: every member decrypts with the run password.")
	default:
		md.Note("All eligible files were sanitized.")
	}
	md.PlainText("")
}

func (f *MarkdownFormatter) writeFiles(md *markdown.Markdown, doc *Document) {
	md.H2("Files")
	md.PlainText("")

	if len(doc.Files) == 0 {
		md.PlainText("No files found in input directory.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(doc.Files))
	for i, fe := range doc.Files {
		rows[i] = []string{"`" + fe.Name + "`", fe.Kind, fe.Status, details(fe)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "Kind", "Status", "Details"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (f *MarkdownFormatter) writeMappings(md *markdown.Markdown, doc *Document) {
	for _, fe := range doc.Files {
		if len(fe.Mappings) == 0 {
			continue
		}
		md.H3("Mappings: " + fe.Name)
		md.PlainText("")
		keys := sortedKeys(fe.Mappings)
		rows := make([][]string, len(keys))
		for i, orig := range keys {
			rows[i] = []string{fe.Mappings[orig], "`" + orig + "`"}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Token", "Original"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (f *MarkdownFormatter) writeWarnings(md *markdown.Markdown, doc *Document) {
	if len(doc.Warnings) == 0 {
		return
	}
	md.H2("Warnings")
	md.PlainText("")
	md.BulletList(doc.Warnings...)
	md.PlainText("")
}
