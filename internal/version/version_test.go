package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2024-06-01T09:30:00Z"

	want := "rovconsole 1.2.0 (abc1234) built 2024-06-01T09:30:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Get(); got.Version != "1.2.0" || got.Commit != "abc1234" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("Version = %q, want dev", Version)
	}
}
