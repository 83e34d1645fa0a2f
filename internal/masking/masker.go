// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package masking

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
)

const (
	// IPTokenPrefix prefixes every IPv4 replacement token (MASKED_IP.1, MASKED_IP.2, ...)
	IPTokenPrefix = "MASKED_IP"

	// HostTokenPrefix prefixes every hostname replacement token (HOST_1, HOST_2, ...)
	HostTokenPrefix = "HOST"
)

// CompiledPattern is an identifier pattern together with the token layout used for its matches.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	TokenFormat string
	Description string
}

// Token returns the token for the n-th distinct value matched by this pattern.
func (p *CompiledPattern) Token(n int) string {
	return fmt.Sprintf(p.TokenFormat, n)
}

var (
	// IPv4Pattern matches four dot-separated groups of 1-3 digits.
	// Octet ranges are not validated, so 999.1.1.1 is masked as well.
	IPv4Pattern = &CompiledPattern{
		Name:        "ipv4",
		Regex:       regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
		TokenFormat: IPTokenPrefix + ".%d",
		Description: "IPv4 address shaped strings",
	}

	// HostnamePattern matches one or more labels followed by a 2-6 letter top-level label.
	HostnamePattern = &CompiledPattern{
		Name:        "hostname",
		Regex:       regexp.MustCompile(`\b(?:[a-zA-Z0-9\-]+\.)+[a-zA-Z]{2,6}\b`),
		TokenFormat: HostTokenPrefix + "_%d",
		Description: "DNS hostname shaped strings",
	}
)

// span is a half-open byte range [start, end) of an inserted token.
type span struct {
	start, end int
}

// Session assigns stable tokens to identifiers for the lifetime of one masking
// scope (one file). Sessions are not safe for concurrent use; create one per file.
type Session struct {
	ips       map[string]string
	hosts     map[string]string
	ipOrder   []string
	hostOrder []string
}

// NewSession creates an empty masking session with both counters at 1.
func NewSession() *Session {
	return &Session{
		ips:   make(map[string]string),
		hosts: make(map[string]string),
	}
}

// Mask replaces every IPv4 and hostname shaped substring in text with its token.
// IPs are replaced first. The hostname pass only looks at the text between
// inserted IP tokens, so a token followed by a domain suffix is never re-read
// as a hostname.
func (s *Session) Mask(text string) string {
	masked, tokens := s.maskIPs(text)
	return s.maskHostnames(masked, tokens)
}

func (s *Session) maskIPs(text string) (string, []span) {
	matches := IPv4Pattern.Regex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	tokens := make([]span, 0, len(matches))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		token := s.tokenFor(IPv4Pattern, text[m[0]:m[1]], s.ips, &s.ipOrder)
		start := b.Len()
		b.WriteString(token)
		tokens = append(tokens, span{start: start, end: b.Len()})
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), tokens
}

func (s *Session) maskHostnames(text string, tokens []span) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, t := range tokens {
		b.WriteString(s.maskHostSegment(text[last:t.start]))
		b.WriteString(text[t.start:t.end])
		last = t.end
	}
	b.WriteString(s.maskHostSegment(text[last:]))
	return b.String()
}

func (s *Session) maskHostSegment(segment string) string {
	if segment == "" {
		return segment
	}
	return HostnamePattern.Regex.ReplaceAllStringFunc(segment, func(match string) string {
		return s.tokenFor(HostnamePattern, match, s.hosts, &s.hostOrder)
	})
}

func (s *Session) tokenFor(p *CompiledPattern, value string, table map[string]string, order *[]string) string {
	if token, ok := table[value]; ok {
		return token
	}
	token := p.Token(len(table) + 1)
	table[value] = token
	*order = append(*order, value)
	return token
}

// Counts returns the number of distinct IPs and hostnames seen so far.
func (s *Session) Counts() (ips, hosts int) {
	return len(s.ips), len(s.hosts)
}

// Mappings returns copies of the value to token tables.
func (s *Session) Mappings() (ips, hosts map[string]string) {
	return maps.Clone(s.ips), maps.Clone(s.hosts)
}

// Findings lists distinct identifiers in first-seen order.
type Findings struct {
	IPs       []string `json:"ips,omitempty" yaml:"ips,omitempty"`
	Hostnames []string `json:"hostnames,omitempty" yaml:"hostnames,omitempty"`
}

// Total returns the number of distinct identifiers found.
func (f Findings) Total() int {
	return len(f.IPs) + len(f.Hostnames)
}

// Findings returns the identifiers this session has tokenized, in first-seen order.
func (s *Session) Findings() Findings {
	return Findings{
		IPs:       append([]string(nil), s.ipOrder...),
		Hostnames: append([]string(nil), s.hostOrder...),
	}
}

// Mask masks text with a fresh session.
func Mask(text string) string {
	return NewSession().Mask(text)
}

// Scan reports the identifiers Mask would replace without producing masked text.
func Scan(text string) Findings {
	s := NewSession()
	s.Mask(text)
	return s.Findings()
}
