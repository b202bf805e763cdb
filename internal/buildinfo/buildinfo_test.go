package buildinfo

import "testing"

func TestStringDefaultsToDev(t *testing.T) {
	if String() != "dev" {
		t.Errorf("String() = %q, want %q", String(), "dev")
	}
}
