package client

import "testing"

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := StripCodeFences(tc.in); got != tc.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	in := "Here is the profile you asked for:\n```json\n{\"bandName\":\"Test\"}\n```\nEnjoy!"
	want := `{"bandName":"Test"}`
	if got := ExtractJSON(in); got != want {
		t.Errorf("ExtractJSON = %q, want %q", got, want)
	}

	// No braces at all: returned as-is after fence stripping
	if got := ExtractJSON("no json here"); got != "no json here" {
		t.Errorf("ExtractJSON without braces = %q", got)
	}
}
