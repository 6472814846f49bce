package http //nolint:revive // intentional naming for domain clarity

import "testing"

func TestParseContentRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "bytes 0-0/11", want: 11},
		{value: " bytes 5-9/1024 ", want: 1024},
		{value: "bytes */0", want: 0},
		{value: "bytes 0-0/*", wantErr: true},
		{value: "items 0-0/11", wantErr: true},
		{value: "bytes 0-0", wantErr: true},
		{value: "bytes 0-0/-1", wantErr: true},
		{value: "bytes 0-0/abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			got, err := parseContentRange(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseContentRange(%q) = %d, want error", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseContentRange(%q) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Fatalf("parseContentRange(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}
