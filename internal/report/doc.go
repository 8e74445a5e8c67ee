// Package report renders rotation and proxy test results.
//
// The same views back the HTTP API responses and the CLI output, so a
// rotation looks identical whether it was requested over HTTP or from a
// terminal. Three writers are provided:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the API's JSON body
//   - MarkdownWriter: a table-based summary for sharing
package report
