package handlers

import "testing"

func TestParseBalanceArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		userID  int64
		slot    int
		raw     string
		wantErr bool
	}{
		{"ok", []string{"12345", "3", "4,5"}, 12345, 3, "4,5", false},
		{"ok negative delta", []string{"12345", "8", "-2"}, 12345, 8, "-2", false},
		{"too few", []string{"12345", "3"}, 0, 0, "", true},
		{"too many", []string{"12345", "3", "4", "extra"}, 0, 0, "", true},
		{"bad user", []string{"abc", "3", "4"}, 0, 0, "", true},
		{"zero user", []string{"0", "3", "4"}, 0, 0, "", true},
		{"bad slot", []string{"12345", "x", "4"}, 0, 0, "", true},
		{"zero slot", []string{"12345", "0", "4"}, 0, 0, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userID, slot, raw, err := parseBalanceArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID != tc.userID || slot != tc.slot || raw != tc.raw {
				t.Fatalf("got (%d, %d, %q), want (%d, %d, %q)",
					userID, slot, raw, tc.userID, tc.slot, tc.raw)
			}
		})
	}
}
