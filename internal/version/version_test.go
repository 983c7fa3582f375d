package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, Date = "v1.0.0", "abc123", "2026-10-18"
	t.Cleanup(func() { Version, Commit, Date = "dev", "unknown", "unknown" })

	if got, want := String(), "v1.0.0 (commit: abc123, built: 2026-10-18)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
