// Package templates holds the templ components rendered as HTMX fragments.
// Edit the .templ files and run `templ generate`; the _templ.go files are
// generated.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate
