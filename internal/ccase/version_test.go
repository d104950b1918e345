package ccase

import "testing"

func TestParseToolVersionOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want toolVersion
		ok   bool
	}{
		{name: "empty", in: "", ok: false},
		{
			name: "full",
			in: "ClearCase version 8.0.1.9 (Tue Sep 15 14:32:06 EDT 2015)\n" +
				"@(#) MVFS version 8.0.1.9 (Tue Sep 15 14:32:06 EDT 2015)\n" +
				"cleartool                         8.0.1.9 (Mon Sep 14 21:02:01 2015)\n",
			want: toolVersion{major: 8, minor: 0, patch: 1},
			ok:   true,
		},
		{name: "cleartool_only", in: "cleartool   7.1.2.8 (Wed Dec 22)\n", want: toolVersion{major: 7, minor: 1, patch: 2}, ok: true},
		{name: "two_parts", in: "ClearCase version 9.1\n", want: toolVersion{major: 9, minor: 1}, ok: true},
		{name: "invalid", in: "ClearCase version unknown\n", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseToolVersionOutput(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got=%+v)", ok, tt.ok, got)
			}
			if ok && got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidateToolVersionOutput(t *testing.T) {
	t.Parallel()

	if err := validateToolVersionOutput("ClearCase version 7.0.0\n"); err != nil {
		t.Fatalf("validateToolVersionOutput(7.0.0): %v", err)
	}
	if err := validateToolVersionOutput("ClearCase version 6.0.1\n"); err == nil {
		t.Fatal("validateToolVersionOutput(6.0.1) succeeded, want error")
	}
}
