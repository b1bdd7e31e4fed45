package domain

import (
	"regexp"
	"strings"
)

var versionSuffix = regexp.MustCompile(`^(.*[0-9])v[0-9]+$`)

var arxivIDExpr = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([0-9]{4}\.[0-9]{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/[0-9]{7})(?:v[0-9]+)?`)

// ArxivID extracts the canonical arXiv identifier from an abstract or PDF URL,
// dropping any version suffix. It returns "" for non-arXiv URLs.
func ArxivID(link string) string {
	match := arxivIDExpr.FindStringSubmatch(link)
	if match == nil {
		return ""
	}
	return match[1]
}

// NormalizeArxivID strips the "arXiv:" prefix and version suffix from a bare identifier.
func NormalizeArxivID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "arXiv:")
	id = strings.TrimPrefix(id, "arxiv:")
	return versionSuffix.ReplaceAllString(id, "$1")
}

// ArxivAbsURL builds the abstract page URL for an identifier.
func ArxivAbsURL(id string) string {
	return "https://arxiv.org/abs/" + NormalizeArxivID(id)
}
