package email

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRecipients(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		expected      []string
		expectedNames []string
		shouldBeError bool
	}{
		{
			description: "mixed separators and spacing",
			input:       "a@x.com; b@x.com,c@x.com",
			expected:    []string{"a@x.com", "b@x.com", "c@x.com"},
		},
		{
			description: "single address",
			input:       "  only@example.com  ",
			expected:    []string{"only@example.com"},
		},
		{
			description:   "display names",
			input:         "Alice <alice@example.com>; Bob <bob@example.com>",
			expected:      []string{"alice@example.com", "bob@example.com"},
			expectedNames: []string{"Alice", "Bob"},
		},
		{
			description: "empty entries are skipped",
			input:       "a@x.com;; ,b@x.com;",
			expected:    []string{"a@x.com", "b@x.com"},
		},
		{
			description:   "empty list",
			input:         "",
			shouldBeError: true,
		},
		{
			description:   "only separators",
			input:         " ; , ",
			shouldBeError: true,
		},
		{
			description:   "malformed address",
			input:         "a@x.com; not an address",
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			addrs, err := ParseRecipients(tc.input)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"unexpected error status--wanted %v but got %v with error %v",
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected an invalid argument error but got %v", err)
				}
				return
			}

			if got := addressStrings(addrs); !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %v but got %v", tc.expected, got)
			}
			for i, n := range tc.expectedNames {
				if addrs[i].Name != n {
					t.Errorf("expected name %q but got %q", n, addrs[i].Name)
				}
			}
		})
	}
}
