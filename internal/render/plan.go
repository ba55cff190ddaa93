// Package render lays out extracted invoice data on a single letter page
// and serializes it to PDF.
package render

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
)

// Page geometry in PDF points, origin at the lower left corner.
const (
	PageWidth  = 612.0
	PageHeight = 792.0

	MarginLeft = 50.0
	MarginTop  = 50.0
	LineHeight = 20.0

	HeadingFont = "Helvetica-Bold"
	HeadingSize = 14
	BodyFont    = "Helvetica"
	BodySize    = 12

	ItemsHeader = "Invoice Items:"
)

// Line is one positioned line of text.
type Line struct {
	Text string
	X, Y float64
	Font string
	Size int
}

// Plan is the complete page layout. There is no pagination; lines that do
// not fit run below the bottom edge.
type Plan struct {
	Width, Height float64
	Lines         []Line
}

// Layout places every field as "key: value" in the heading font, then the
// items header, then each item in the body font, one line each, top down.
func Layout(f *fields.Fields, items []string) Plan {
	p := Plan{Width: PageWidth, Height: PageHeight}
	y := PageHeight - MarginTop
	add := func(text, font string, size int) {
		p.Lines = append(p.Lines, Line{Text: singleLine(text), X: MarginLeft, Y: y, Font: font, Size: size})
		y -= LineHeight
	}
	for k, v := range f.All() {
		add(k+": "+v, HeadingFont, HeadingSize)
	}
	add(ItemsHeader, HeadingFont, HeadingSize)
	for _, item := range items {
		add(item, BodyFont, BodySize)
	}
	return p
}

// Overflow counts lines placed below the bottom margin.
func (p Plan) Overflow() int {
	n := 0
	for _, l := range p.Lines {
		if l.Y < MarginTop {
			n++
		}
	}
	return n
}

// singleLine flattens embedded line breaks and tabs (multi-paragraph table
// cells) so each plan entry occupies exactly one line.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', '\v', '\f', '\u2028', '\u2029':
			return ' '
		}
		return r
	}, s)
}
