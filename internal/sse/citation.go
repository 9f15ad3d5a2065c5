package sse

import (
	"net/url"
	"strings"

	"mediq/internal/util"
)

// Citation is one source reference attached to a streamed answer.
// Number is the stable caller-facing index, unique within a stream.
type Citation struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Authors string `json:"authors"`
}

// sourceLabels maps host substrings to display names for citations
// that arrive as bare URLs. Order matters: the first match wins
// (pubmed.ncbi.nlm.nih.gov must resolve to PubMed, not NIH).
var sourceLabels = []struct {
	fragment string
	label    string
}{
	{"pubmed", "PubMed"},
	{"cochrane", "Cochrane Library"},
	{"nejm", "NEJM"},
	{"jamanetwork", "JAMA"},
	{"thelancet", "The Lancet"},
	{"bmj.com", "BMJ"},
	{"uptodate", "UpToDate"},
	{"clinicaltrials", "ClinicalTrials.gov"},
	{"nih.gov", "NIH"},
	{"cdc.gov", "CDC"},
	{"who.int", "WHO"},
	{"fda.gov", "FDA"},
	{"wikipedia", "Wikipedia"},
}

// normalizeStructured converts record-shaped citation candidates,
// preserving the source numbering. Records missing a positive number,
// a title or a url are dropped, as are repeats of an already-kept
// number or URL (number stays unique within the list); a missing
// authors field falls back to the URL host.
func normalizeStructured(items []any) []Citation {
	out := make([]Citation, 0, len(items))
	seenNumbers := make(map[int]bool, len(items))
	seenURLs := make(map[string]bool, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		number := util.IntFrom(m["number"])
		title := util.StringFrom(m["title"])
		rawURL := util.StringFrom(m["url"])
		if number <= 0 || title == "" || rawURL == "" {
			continue
		}
		if seenNumbers[number] || seenURLs[rawURL] {
			continue
		}
		seenNumbers[number] = true
		seenURLs[rawURL] = true
		authors := util.StringFrom(m["authors"])
		if authors == "" {
			if host, ok := citationHost(rawURL); ok {
				authors = host
			}
		}
		out = append(out, Citation{Number: number, Title: title, URL: rawURL, Authors: authors})
	}
	return out
}

// normalizeURLList converts bare-URL candidates, numbering the kept
// entries sequentially from 1. Invalid URLs and repeats are skipped
// without aborting the rest, so numbering stays dense over the kept
// entries.
func normalizeURLList(items []any) []Citation {
	out := make([]Citation, 0, len(items))
	seenURLs := make(map[string]bool, len(items))
	for _, it := range items {
		rawURL, ok := it.(string)
		if !ok {
			continue
		}
		host, ok := citationHost(rawURL)
		if !ok {
			continue
		}
		if seenURLs[rawURL] {
			continue
		}
		seenURLs[rawURL] = true
		label := hostLabel(host)
		out = append(out, Citation{
			Number:  len(out) + 1,
			Title:   label,
			URL:     rawURL,
			Authors: host,
		})
	}
	return out
}

func citationHost(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.Hostname(), true
}

func hostLabel(host string) string {
	lower := strings.ToLower(host)
	for _, s := range sourceLabels {
		if strings.Contains(lower, s.fragment) {
			return s.label
		}
	}
	return host
}
