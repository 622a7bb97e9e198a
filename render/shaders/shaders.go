// Package shaders embeds the WGSL sources of the built-in fullscreen and background passes.
package shaders

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gekko3d/lumen/render/gpu"
)

//go:embed fullscreen.wgsl
var FullscreenVert string

//go:embed copy.wgsl
var CopyFrag string

//go:embed blit.wgsl
var BlitFrag string

//go:embed sky.wgsl
var SkyFrag string

//go:embed background.wgsl
var BackgroundVert string

//go:embed sky_background.wgsl
var SkyBackgroundFrag string

const defaultMarker = "// define "

// Build prepends one WGSL constant per define to src. Defines are "NAME VALUE" pairs;
// a "// define NAME DEFAULT" line in src supplies the value when NAME is not given.
// Tone map names are converted to their numeric value.
func Build(src string, defines []string) (string, error) {
	values := make(map[string]string)
	for _, line := range strings.Split(src, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), defaultMarker); ok {
			name, value, _ := strings.Cut(rest, " ")
			values[name] = value
		}
	}
	for _, def := range defines {
		name, value, _ := strings.Cut(strings.TrimSpace(def), " ")
		if name == "" {
			continue
		}
		v, err := wgslValue(name, value)
		if err != nil {
			return "", err
		}
		values[name] = v
	}
	if len(values) == 0 {
		return src, nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "const %s = %s;\n", name, values[name])
	}
	b.WriteString(src)
	return b.String(), nil
}

func wgslValue(name, value string) (string, error) {
	switch {
	case value == "":
		return "true", nil
	case name == "TONE_MAP":
		t, err := gpu.ParseToneMap(value)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(t)) + "u", nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(value, "u"), "i"), 64); err != nil {
		return "", fmt.Errorf("shaders: define %s has non-numeric value %q", name, value)
	}
	return value, nil
}
