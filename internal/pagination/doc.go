// Package pagination holds the client-side paging math shared by the search
// controller, the TUI footer and the CLI output.
//
// Pages are 1-based. A result set of n items split into pages of size s has
// ceil(n/s) pages; an empty set has zero pages but the current page is still
// reported as 1 so callers never have to special-case it.
package pagination
