package exitcodes

import (
	"errors"
	"testing"
)

func TestForRun(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		blocked bool
		want    int
	}{
		{"clean run", nil, false, Success},
		{"safety refusal", nil, true, SafetyViolation},
		{"job error", errors.New("boom"), false, RuntimeError},
		{"job error outranks refusal", errors.New("boom"), true, RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForRun(tt.err, tt.blocked); got != tt.want {
				t.Errorf("ForRun() = %d, want %d", got, tt.want)
			}
		})
	}
}
