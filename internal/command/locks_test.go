package command

import (
	"errors"
	"testing"
)

func TestLockSet_Defaults(t *testing.T) {
	l := NewLockSet()

	locked := []Feature{SpotlightPower, DepthHold, HeadingHold, HoverMode, CollisionAvoidance, BatteryOptimization}
	for _, f := range locked {
		if !l.Locked(f) {
			t.Errorf("Locked(%s) = false, want true", f)
		}
	}
	if l.Locked(ThrusterPower) {
		t.Error("Locked(thrusterPower) = true, want false")
	}
	if got := len(l.LockedFeatures()); got != len(locked) {
		t.Errorf("len(LockedFeatures()) = %d, want %d", got, len(locked))
	}
}

func TestLockSet_Check(t *testing.T) {
	l := NewLockSet()

	if err := l.Check(Toggle(DepthHold, true)); !errors.Is(err, ErrFeatureLocked) {
		t.Errorf("Check(depthHold) error = %v, want ErrFeatureLocked", err)
	}
	if err := l.Check(Set(ThrusterPower, 20)); err != nil {
		t.Errorf("Check(thrusterPower) error = %v, want nil", err)
	}

	if err := l.Unlock(DepthHold); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := l.Check(Toggle(DepthHold, true)); err != nil {
		t.Errorf("Check(depthHold) after unlock error = %v, want nil", err)
	}

	if err := l.Lock(MainLight); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if err := l.Check(Lights(true, true)); !errors.Is(err, ErrFeatureLocked) {
		t.Errorf("Check(lights) error = %v, want ErrFeatureLocked", err)
	}
}

func TestLockSet_UnknownFeature(t *testing.T) {
	l := NewLockSet()
	if err := l.Lock(Feature("sonar")); !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("Lock(sonar) error = %v, want ErrUnknownFeature", err)
	}
}

func TestLockSet_NilAllowsEverything(t *testing.T) {
	var l *LockSet
	if err := l.Check(Toggle(DepthHold, true)); err != nil {
		t.Errorf("nil Check() error = %v, want nil", err)
	}
}
