//go:build darwin

package notify

import "testing"

func TestDisplayScript(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "app title only",
			n:    Notification{Title: "patchwatch", Message: "Updated to version 1.2.0."},
			want: `display notification "Updated to version 1.2.0." with title "patchwatch"`,
		},
		{
			name: "subtitle and quoting",
			n:    Notification{Title: "Release", Message: `Close "App"` + "\nnow"},
			want: `display notification "Close \"App\" now" with title "patchwatch" subtitle "Release"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayScript(tt.n); got != tt.want {
				t.Errorf("displayScript() = %s, want %s", got, tt.want)
			}
		})
	}
}
