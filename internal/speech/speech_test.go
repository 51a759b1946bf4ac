package speech

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "plain text passes through",
			source: "The kitchen light is on.",
			want:   "The kitchen light is on.",
		},
		{
			name:   "emphasis stripped",
			source: "It is **very** warm, *really* warm.",
			want:   "It is very warm, really warm.",
		},
		{
			name:   "heading stripped",
			source: "# Status\n\nAll lights are off.",
			want:   "Status All lights are off.",
		},
		{
			name:   "link keeps text drops url",
			source: "See [the forecast](https://example.com/weather) for details.",
			want:   "See the forecast for details.",
		},
		{
			name:   "list bullets removed",
			source: "- kitchen\n- office\n- bedroom",
			want:   "kitchen office bedroom",
		},
		{
			name:   "inline code kept",
			source: "Set it to `heat` mode.",
			want:   "Set it to heat mode.",
		},
		{
			name:   "fenced code content kept without fences",
			source: "Run this:\n\n```\necho hello\n```",
			want:   "Run this: echo hello",
		},
		{
			name:   "whitespace collapsed",
			source: "Too   many\n\n\nspaces.",
			want:   "Too many spaces.",
		},
		{
			name:   "empty",
			source: "",
			want:   "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.source); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.source, got, tc.want)
			}
		})
	}
}
