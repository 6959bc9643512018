package fairness

import "testing"

func TestInterpret_DecisionTable(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name          string
		ba            *float64
		detectionRate float64
		want          string
	}{
		{"no accuracy", nil, 1.0, StatusInsufficientData},
		{"no accuracy beats low detection", nil, 0.1, StatusInsufficientData},
		{"low detection", f(0.99), 0.69, StatusDetectionRisk},
		{"detection at cut", f(0.95), 0.7, StatusLowBias},
		{"low bias boundary", f(0.9), 1.0, StatusLowBias},
		{"moderate", f(0.85), 1.0, StatusModerateBias},
		{"moderate boundary", f(0.8), 0.9, StatusModerateBias},
		{"high", f(0.79), 0.9, StatusHighBias},
		{"zero accuracy", f(0), 1.0, StatusHighBias},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpret(tt.ba, tt.detectionRate)
			if got.Status != tt.want {
				t.Errorf("Interpret = %s, want %s", got.Status, tt.want)
			}
			if got.Message == "" {
				t.Error("expected a message for every status")
			}
		})
	}
}

func TestInterpretationRules_LastAlwaysApplies(t *testing.T) {
	last := interpretationRules[len(interpretationRules)-1]
	f := 0.5
	if !last.applies(&f, 0) {
		t.Error("final rule must apply unconditionally")
	}
}
