package scripting

import (
	"errors"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"alert", `app.alert("hello");`, false},
		{"function", `function f(x) { return x * 2 } f(3);`, false},
		{"unbalanced", `function f( { return 1 }`, true},
		{"blank", "   ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.name, tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckSyntaxErrorType(t *testing.T) {
	err := Check("open", "var = 1")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T, want *SyntaxError", err)
	}
	if se.Name != "open" {
		t.Fatalf("name = %q", se.Name)
	}
	if !errors.Is(Check("x", ""), ErrEmptyScript) {
		t.Fatalf("empty script not reported")
	}
}
