package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rootTagRe    = regexp.MustCompile(`(?s)<svg\b[^>]*>`)
	viewBoxRe    = regexp.MustCompile(`\bviewBox\s*=\s*"([^"]*)"`)
	widthAttrRe  = regexp.MustCompile(`\swidth\s*=\s*"[^"]*"`)
	heightAttrRe = regexp.MustCompile(`\sheight\s*=\s*"[^"]*"`)
	styleAttrRe  = regexp.MustCompile(`\sstyle\s*=\s*"([^"]*)"`)

	// Declarations dropped from the root style: on-screen pan/zoom and the
	// responsive width cap Mermaid adds.
	droppedStyleRe = regexp.MustCompile(`(?i)^\s*(transform|max-width|background(-color)?)\s*:`)
)

// Size returns the intrinsic size of an SVG document from its viewBox.
func Size(svg string) (w, h float64, err error) {
	root := rootTagRe.FindString(svg)
	if root == "" {
		return 0, 0, fmt.Errorf("no <svg> element found")
	}
	m := viewBoxRe.FindStringSubmatch(root)
	if m == nil {
		return 0, 0, fmt.Errorf("svg has no viewBox")
	}
	fields := strings.FieldsFunc(m[1], func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return 0, 0, fmt.Errorf("malformed viewBox %q", m[1])
	}
	w, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed viewBox %q: %w", m[1], err)
	}
	h, err = strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed viewBox %q: %w", m[1], err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("svg has empty viewBox %q", m[1])
	}
	return w, h, nil
}

// PrepareSVG returns a standalone copy of svg: explicit pixel width and
// height taken from the viewBox, any transform removed from the root style,
// and a white background unless transparent is set.
func PrepareSVG(svg string, transparent bool) (string, error) {
	loc := rootTagRe.FindStringIndex(svg)
	if loc == nil {
		return "", fmt.Errorf("no <svg> element found")
	}
	w, h, err := Size(svg)
	if err != nil {
		return "", err
	}

	root := svg[loc[0]:loc[1]]
	var style []string
	if m := styleAttrRe.FindStringSubmatch(root); m != nil {
		for _, decl := range strings.Split(m[1], ";") {
			if strings.TrimSpace(decl) == "" || droppedStyleRe.MatchString(decl) {
				continue
			}
			style = append(style, strings.TrimSpace(decl))
		}
	}
	if !transparent {
		style = append(style, "background-color: white")
	}

	root = widthAttrRe.ReplaceAllString(root, "")
	root = heightAttrRe.ReplaceAllString(root, "")
	root = styleAttrRe.ReplaceAllString(root, "")

	closing := ">"
	body := strings.TrimSuffix(root, ">")
	if strings.HasSuffix(body, "/") {
		body = strings.TrimSuffix(body, "/")
		closing = "/>"
	}
	body = strings.TrimRight(body, " \t\n")

	var b strings.Builder
	b.WriteString(body)
	fmt.Fprintf(&b, ` width="%s" height="%s"`, formatPx(w), formatPx(h))
	if len(style) > 0 {
		fmt.Fprintf(&b, ` style="%s"`, strings.Join(style, "; "))
	}
	b.WriteString(closing)

	return svg[:loc[0]] + b.String() + svg[loc[1]:], nil
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
