package projection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSSColor(t *testing.T) {
	valid := []string{"#fff", "#ffff", "#a0b1c2", "#a0b1c2ff", "red", "Transparent",
		"rgb(255,0,0)", "rgb(255 0 0)", "RGBA(1, 2, 3, 0.4)", "hsl(0, 100%, 50%)", "hsla(.5turn 10% 20% / 30%)"}
	for _, c := range valid {
		got, ok := cssColor(c)
		require.True(t, ok, c)
		require.Equal(t, c, string(got))
	}

	invalid := []string{"", "#ff", "#ggg", "rgb(255, 0)", "rgb(a, b, c)", "var(--x)",
		"url(x)", "red;", "red blue", "rgb(1,2,3,4,5)", "expression(alert(1))"}
	for _, c := range invalid {
		got, ok := cssColor(c)
		require.False(t, ok, c)
		require.Empty(t, got)
	}
}

func TestCSSLength(t *testing.T) {
	valid := []CSSLength{"100px", "50%", "0", "1.5em", "-4px", "auto", "calc(50% - 10px)", "calc(100vw / 3)", "calc(2 * 8px + 1rem)"}
	for _, l := range valid {
		got, ok := cssLength(l)
		require.True(t, ok, string(l))
		require.Equal(t, string(l), string(got))
	}

	invalid := []CSSLength{"", "10 px", "calc(50%-10px)", "calc(var(--w))", "min(10px, 5%)", "100px;color:red", "attr(width)"}
	for _, l := range invalid {
		_, ok := cssLength(l)
		require.False(t, ok, string(l))
	}
}
