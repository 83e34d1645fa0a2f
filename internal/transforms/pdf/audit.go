// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"fmt"
	"strings"

	"ferret-seal/internal/masking"

	pdftext "github.com/ledongthuc/pdf"
)

// maxAuditPages limits text extraction on very large documents
const maxAuditPages = 200

// AuditIdentifiers extracts the plain text of a PDF and reports the IP
// addresses and hostnames it contains. Document text is watermarked but never
// masked, so anything found here ships unmasked inside the encrypted copy.
func AuditIdentifiers(path string) (findings masking.Findings, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	f, r, err := pdftext.Open(path)
	if err != nil {
		return masking.Findings{}, fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	pages := min(r.NumPage(), maxAuditPages)

	var buf strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return masking.Scan(buf.String()), nil
}

// auditWarnings turns findings into report warnings without echoing the values
func auditWarnings(f masking.Findings) []string {
	if f.Total() == 0 {
		return nil
	}
	return []string{fmt.Sprintf("document text contains %d IP address(es) and %d hostname(s) that are not masked",
		len(f.IPs), len(f.Hostnames))}
}
