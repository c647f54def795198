package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 1000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	valid := NewRunID()
	tests := []struct {
		input    string
		hasError bool
	}{
		{valid.String(), false},
		{"", true},
		{"   ", true},
		{"not-a-uuid", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRunID(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != valid {
				t.Errorf("Expected %s, got %s", valid, got)
			}
		})
	}
}

func TestComputeListHashKeepsOrder(t *testing.T) {
	a := ComputeListHash([]string{"GO:1", "GO:2"})
	if a != ComputeListHash([]string{"GO:1", "GO:2"}) {
		t.Error("Expected equal hashes for equal lists")
	}
	if a == ComputeListHash([]string{"GO:2", "GO:1"}) {
		t.Error("Expected different hash for a different order")
	}
	if a == ComputeListHash([]string{"GO:1G", "O:2"}) {
		t.Error("Expected key boundaries to affect the hash")
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	var parseErr error = &ParseError{Stanza: 3, Line: 12, Tag: "name", Reason: "missing required tag"}
	if !errors.Is(parseErr, ErrParse) {
		t.Error("ParseError should unwrap to ErrParse")
	}
	if got := parseErr.Error(); got != `stanza 3 (line 12) tag "name": missing required tag` {
		t.Errorf("Unexpected message: %s", got)
	}

	inputErr := NewInputError("study", "set is empty")
	if !errors.Is(inputErr, ErrInput) {
		t.Error("InputError should unwrap to ErrInput")
	}

	numErr := &NumericDisagreementError{TermID: "GO:1", Engines: [2]string{"a", "b"}, Values: [2]float64{0.1, 0.2}}
	if !errors.Is(numErr, ErrNumericDisagreement) {
		t.Error("NumericDisagreementError should unwrap to ErrNumericDisagreement")
	}
	if !IsFatal(numErr) || IsFatal(NewUnknownTermError("GO:1")) {
		t.Error("IsFatal classification is wrong")
	}
	if !IsNotFoundError(NewRunNotFoundError("x")) {
		t.Error("run not found should be a not-found error")
	}
}
