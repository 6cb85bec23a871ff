package phone

import (
	"reflect"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare ten digit gains country code", raw: "5551234567", want: "+15551234567"},
		{name: "canonical key passes through", raw: "+15551234567", want: "+15551234567"},
		{name: "eleven digits without plus gains plus", raw: "15551234567", want: "+15551234567"},
		{name: "separators fall through to plus prefix", raw: "555-123-4567", want: "+555-123-4567"},
		{name: "international key passes through", raw: "+442071838750", want: "+442071838750"},
		{name: "short number gains plus prefix", raw: "12345", want: "+12345"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeKey(tc.raw); got != tc.want {
				t.Fatalf("NormalizeKey(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeKeysDropsEmptyEntries(t *testing.T) {
	t.Parallel()

	got := NormalizeKeys([]string{"5551234567", "  ", "", "15551234567"})
	want := []string{"+15551234567", "+15551234567"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeKeys = %v, want %v", got, want)
	}
}
