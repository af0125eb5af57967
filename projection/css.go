package projection

import (
	"html/template"
	"regexp"
)

// html/template blanks any CSS value written with function notation, so
// colors and lengths from payloads are checked here and passed on as
// template.CSS. Anything else is dropped.
const (
	cssNumber = `[-+]?(?:\d+\.?\d*|\.\d+)`
	cssAngle  = cssNumber + `(?:%|deg|grad|rad|turn)?`
	cssUnit   = cssNumber + `(?:px|%|em|rem|ex|ch|vw|vh|vmin|vmax|pt|pc|cm|mm|in)?`
)

var (
	hexColorRE   = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	namedColorRE = regexp.MustCompile(`^[a-zA-Z]{3,32}$`)
	funcColorRE  = regexp.MustCompile(`^(?i:rgba?|hsla?)\(\s*` + cssAngle + `(?:(?:\s*[,/]\s*|\s+)` + cssAngle + `){2,3}\s*\)$`)
	lengthRE     = regexp.MustCompile(`^` + cssUnit + `$`)
	calcRE       = regexp.MustCompile(`^(?i:calc)\(\s*` + cssUnit + `(?:\s+[-+]\s+` + cssUnit + `|\s*[*/]\s*` + cssUnit + `)*\s*\)$`)
)

// cssColor returns s when it is a hex, named, rgb(a) or hsl(a) color.
func cssColor(s string) (template.CSS, bool) {
	if hexColorRE.MatchString(s) || namedColorRE.MatchString(s) || funcColorRE.MatchString(s) {
		return template.CSS(s), true //nolint:gosec // G203: matched against the color grammar above
	}
	return "", false
}

// cssLength returns l when it is a number with an optional unit, auto, or a
// calc() over such numbers.
func cssLength(l CSSLength) (template.CSS, bool) {
	s := string(l)
	if s == "auto" || lengthRE.MatchString(s) || calcRE.MatchString(s) {
		return template.CSS(s), true //nolint:gosec // G203: matched against the length grammar above
	}
	return "", false
}
