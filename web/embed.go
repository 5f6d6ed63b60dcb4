// Package web holds the HTML templates and static assets of the catalog UI.
// They are compiled into the binary, so the server runs from any directory.
package web

import "embed"

//go:embed templates/*.html static/*.css
var Assets embed.FS
