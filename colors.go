package irc

import "regexp"

// mIRC color codes: \x03 optionally followed by a one or two digit
// foreground color, optionally followed by ",NN" for the background.
var colorCode = regexp.MustCompile("\x03(\\d{1,2}(,\\d{1,2})?)?")

// styleChars are the formatting control characters that toggle bold,
// underline, italic, strikethrough, reverse, and monospace. \x0F resets
// all active styles. Because the characters carry no visible glyph,
// stripping them unconditionally (whether or not a given instance is
// actually paired with a matching close) produces the same visible text
// as tracking pairs and only removing matched/closed runs: either way
// the control bytes disappear and any enclosed text is left intact.
var styleChars = regexp.MustCompile("[\x02\x1F\x1D\x16\x1E\x11\x0F]")

// StripColors removes mIRC-style color codes from text, leaving style
// control characters (bold, underline, etc.) untouched.
func StripColors(text string) string {
	return colorCode.ReplaceAllString(text, "")
}

// StripFormatting removes both color codes and style control characters
// from text, matching the color/style stripping behavior applied to
// incoming messages when a client is configured with StripColors.
func StripFormatting(text string) string {
	return styleChars.ReplaceAllString(colorCode.ReplaceAllString(text, ""), "")
}

// ParseLine decodes a single CRLF-stripped IRC line into a Message. When
// stripColors is true, mIRC color and style control sequences are
// removed from the line before it is parsed, so that they never appear
// in the resulting Message's parameters.
func ParseLine(line string, stripColors bool) (*Message, error) {
	if stripColors {
		line = StripFormatting(line)
	}
	m := new(Message)
	err := m.UnmarshalText([]byte(line))
	return m, err
}
