package service

import "strings"

// SearchTerms splits a query on whitespace. A blank query has no terms.
func SearchTerms(query string) []string {
	return strings.Fields(query)
}
