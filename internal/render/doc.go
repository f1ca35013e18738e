// Package render turns catalog records and assistant replies into terminal
// text. Markdown is parsed with goldmark and re-emitted as plain lines with
// color accents; collections are laid out with text/tabwriter.
package render
