package classify

import "testing"

type testClassifier struct{}

func (testClassifier) Classify(error) Outcome {
	return Outcome{Class: Permanent, Reason: "test"}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected registry")
	}

	reg.Register("  custom  ", testClassifier{})
	got, ok := reg.Get("custom")
	if !ok || got == nil {
		t.Fatal("expected classifier to be registered")
	}
}

func TestRegistry_Validation(t *testing.T) {
	var nilReg *Registry
	nilReg.Register("name", testClassifier{})
	if got, ok := nilReg.Get("name"); ok || got != nil {
		t.Fatalf("expected nil,false for nil registry")
	}

	reg := NewRegistry()
	reg.Register("   ", testClassifier{})
	if got, ok := reg.Get("   "); ok || got != nil {
		t.Fatalf("expected empty name to be ignored")
	}

	reg.Register("name", nil)
	if got, ok := reg.Get("name"); ok || got != nil {
		t.Fatalf("expected nil classifier to be ignored")
	}
}

func TestRegistry_LookupFallsBackToGRPC(t *testing.T) {
	reg := DefaultRegistry()
	if _, ok := reg.Lookup("missing").(GRPC); !ok {
		t.Fatalf("expected GRPC fallback")
	}
	if _, ok := reg.Lookup(" never ").(Never); !ok {
		t.Fatalf("expected Never classifier")
	}

	var nilReg *Registry
	if _, ok := nilReg.Lookup("never").(GRPC); !ok {
		t.Fatalf("expected GRPC fallback for nil registry")
	}
}

func TestRegistry_IgnoresTypedNil(t *testing.T) {
	reg := NewRegistry()
	var fn ClassifierFunc
	reg.Register("fn", fn)
	if _, ok := reg.Get("fn"); ok {
		t.Fatalf("expected typed-nil classifier to be ignored")
	}
}
