package policy

import "testing"

func TestNormalizeError_Error(t *testing.T) {
	var nilErr *NormalizeError
	if got := nilErr.Error(); got != "<nil>" {
		t.Fatalf("nil error string=%q, want %q", got, "<nil>")
	}

	cases := []struct {
		name string
		err  *NormalizeError
		want string
	}{
		{
			name: "field only",
			err:  &NormalizeError{Field: "retry.classifier", Value: " "},
			want: `tableadmin: invalid call policy: retry.classifier=" "`,
		},
		{
			name: "enum",
			err:  &NormalizeError{Field: "retry.kind", Value: "forever", Allowed: []string{"attempts", "elapsed"}},
			want: `tableadmin: invalid call policy: retry.kind="forever" (want one of attempts, elapsed)`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error()=%q, want %q", got, tc.want)
			}
		})
	}
}
