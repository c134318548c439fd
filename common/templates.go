package common

import (
	"html/template"
	"strconv"
	"strings"
	"time"
)

// TemplateFuncs is shared by every package that renders HTML views.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"now": func() time.Time {
			return time.Now()
		},
		"price": FormatPrice,
		"add": func(a, b int) int {
			return a + b
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
		"stars": func(n int) string {
			if n < 0 {
				n = 0
			}
			if n > 5 {
				n = 5
			}
			return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
		},
		"join": strings.Join,
		"date": func(t time.Time) string {
			return t.Format("02.01.2006")
		},
	}
}

// FormatPrice groups thousands with a thin space: 12500 -> "12 500".
func FormatPrice(v int) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.Itoa(v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
