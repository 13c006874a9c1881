package broadcast

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		role       string
		recipients []string
		want       bool
	}{
		{"patient", []string{"patients"}, true},
		{"patient", []string{"doctors"}, false},
		{"patient", []string{"all"}, true},
		{"doctor", []string{"doctors", "reception"}, true},
		{"reception", []string{"reception"}, true},
		{"doctors", []string{"doctors"}, true},
		{"doctor", []string{" doctors "}, true},
		{"admin", []string{"admins"}, true},
		{"patient", nil, false},
		{"patient", []string{""}, false},
		{"patient", []string{"Patients"}, false},
		{"nurse", []string{"doctors", "patients"}, false},
		{"nurse", []string{"nurse"}, true},
	}

	for _, tt := range tests {
		if got := Matches(tt.role, tt.recipients); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.role, tt.recipients, got, tt.want)
		}
	}
}

func TestAlias(t *testing.T) {
	if Alias("doctor") != "doctors" || Alias("nurse") != "nurse" {
		t.Errorf("unexpected aliases: %q %q", Alias("doctor"), Alias("nurse"))
	}
}
