// Package search turns a lead search request into normalized leads: it pages
// through text search results, dedupes them by place ID, and optionally fills
// in contact details for the first results.
package search
