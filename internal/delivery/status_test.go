package delivery

import "testing"

func TestAdvance(t *testing.T) {
	tests := []struct {
		name    string
		cur     Status
		next    Status
		want    Status
		changed bool
	}{
		{"sent to delivered", Sent, Delivered, Delivered, true},
		{"delivered to read", Delivered, Read, Read, true},
		{"skip sent to read", Sent, Read, Read, true},
		{"delivered after read does not regress", Read, Delivered, Read, false},
		{"read after read is a no-op", Read, Read, Read, false},
		{"delivered twice", Delivered, Delivered, Delivered, false},
		{"sent after delivered", Delivered, Sent, Delivered, false},
		{"unknown target ignored", Sent, Status("lost"), Sent, false},
		{"unknown current accepts valid", Status(""), Delivered, Delivered, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Advance(tt.cur, tt.next)
			if got != tt.want || changed != tt.changed {
				t.Errorf("Advance(%q, %q) = (%q, %v), want (%q, %v)", tt.cur, tt.next, got, changed, tt.want, tt.changed)
			}
		})
	}
}

// Any sequence of applied frames must yield a subsequence of sent, delivered, read.
func TestAdvance_Monotonic(t *testing.T) {
	frames := []Status{Delivered, Sent, Read, Delivered, Read, Sent}
	cur := Sent
	seen := []Status{cur}
	for _, f := range frames {
		if next, ok := Advance(cur, f); ok {
			cur = next
			seen = append(seen, cur)
		}
	}

	for i := 1; i < len(seen); i++ {
		if seen[i].rank() <= seen[i-1].rank() {
			t.Fatalf("status regressed: %v", seen)
		}
	}
	if !cur.Terminal() {
		t.Errorf("Expected terminal read, got %q", cur)
	}
}

func TestParse(t *testing.T) {
	if got := Parse("", Delivered); got != Delivered {
		t.Errorf("Expected default delivered, got %q", got)
	}
	if got := Parse("read", Delivered); got != Read {
		t.Errorf("Expected read, got %q", got)
	}
	if got := Parse("unread", Delivered); got != Delivered {
		t.Errorf("Expected default for unknown value, got %q", got)
	}
}
