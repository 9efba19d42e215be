// Package output formats bundle summaries, cleanup reports, cache
// statistics, and record listings for display or machine consumption.
//
// Three formats are supported:
//   - text     — human-readable terminal output (default)
//   - json     — full structured JSON report
//   - markdown — issue-comment-friendly cleanup report with collapsible sections
//
// Each report type has its own WriteX entry point taking an [io.Writer] and
// a format string; [To] is a convenience helper that selects a file or
// stdout as the destination. Markdown is only offered where a report is
// meant to be pasted somewhere (cleanup); the rest are text/json.
package output
