// Package assemble builds the final styled HTML document from generated
// lesson fragments, the outline, and a font/color theme.
package assemble

import "strconv"

// FontStyle holds the CSS snippets for one named font choice.
type FontStyle struct {
	Import   string // @import rule pulling the web font
	Body     string // body font-family declaration
	Headings string // heading font-family declaration
}

// FontCatalog maps font names to their styles. Loaded once at startup and
// injected into the builder.
type FontCatalog map[string]FontStyle

// DefaultFontName is used when the requested font is unknown.
const DefaultFontName = "roboto"

// DefaultFonts returns the built-in font catalog.
func DefaultFonts() FontCatalog {
	return FontCatalog{
		"roboto": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Roboto:wght@400;700&display=swap');",
			Body:     "font-family: 'Roboto', sans-serif;",
			Headings: "font-family: 'Roboto', sans-serif; font-weight: 700;",
		},
		"merriweather": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Merriweather:wght@400;700&display=swap');",
			Body:     "font-family: 'Merriweather', serif;",
			Headings: "font-family: 'Merriweather', serif;",
		},
		"montserrat": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Montserrat:wght@400;700;900&display=swap');",
			Body:     "font-family: 'Montserrat', sans-serif;",
			Headings: "font-family: 'Montserrat', sans-serif; text-transform: uppercase; letter-spacing: 1px; font-weight: 900;",
		},
		"lato": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Lato:wght@400;700&display=swap');",
			Body:     "font-family: 'Lato', sans-serif;",
			Headings: "font-family: 'Lato', sans-serif; font-weight: 700;",
		},
		"lora": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Lora:wght@400;700&display=swap');",
			Body:     "font-family: 'Lora', serif;",
			Headings: "font-family: 'Lora', serif;",
		},
		"playfair": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Playfair+Display:wght@400;700&display=swap');",
			Body:     "font-family: 'Playfair Display', serif;",
			Headings: "font-family: 'Playfair Display', serif; font-weight: 700;",
		},
		"oswald": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Oswald:wght@400;700&display=swap');",
			Body:     "font-family: 'Oswald', sans-serif;",
			Headings: "font-family: 'Oswald', sans-serif; text-transform: uppercase;",
		},
		"source_sans_pro": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Source+Sans+Pro:wght@400;700&display=swap');",
			Body:     "font-family: 'Source Sans Pro', sans-serif;",
			Headings: "font-family: 'Source Sans Pro', sans-serif; font-weight: 700;",
		},
		"pt_serif": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=PT+Serif:wght@400;700&display=swap');",
			Body:     "font-family: 'PT Serif', serif;",
			Headings: "font-family: 'PT Serif', serif;",
		},
		"nunito": {
			Import:   "@import url('https://fonts.googleapis.com/css2?family=Nunito:wght@400;700&display=swap');",
			Body:     "font-family: 'Nunito', sans-serif;",
			Headings: "font-family: 'Nunito', sans-serif; font-weight: 700;",
		},
	}
}

// Get returns the style for a name, falling back to the default font.
func (c FontCatalog) Get(name string) FontStyle {
	if style, ok := c[name]; ok {
		return style
	}
	return c[DefaultFontName]
}

// Palette holds the foreground colors chosen for a background.
type Palette struct {
	Text      string
	Heading   string
	TOCLink   string
	TOCBorder string
}

// IsDarkColor reports whether a background hex color is perceptually dark,
// using the standard sRGB luminance weights with a threshold of 128.
// Malformed input counts as light.
func IsDarkColor(hexColor string) bool {
	if len(hexColor) > 0 && hexColor[0] == '#' {
		hexColor = hexColor[1:]
	}
	if len(hexColor) != 6 {
		return false
	}
	r, err1 := strconv.ParseUint(hexColor[0:2], 16, 8)
	g, err2 := strconv.ParseUint(hexColor[2:4], 16, 8)
	b, err3 := strconv.ParseUint(hexColor[4:6], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	luminance := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return luminance < 128
}

// PaletteFor selects light-on-dark or dark-on-light foreground colors so
// text stays readable on any user-chosen background.
func PaletteFor(backgroundHex string) Palette {
	if IsDarkColor(backgroundHex) {
		return Palette{Text: "#EAEAEA", Heading: "#FFFFFF", TOCLink: "#90cdf4", TOCBorder: "#4A5567"}
	}
	return Palette{Text: "#333333", Heading: "#111111", TOCLink: "#2c3e50", TOCBorder: "#CCCCCC"}
}
