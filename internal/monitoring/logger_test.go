package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})

	Opsf("ops %d", 1)
	Diagf("diag %d", 2)
	Tracef("trace %d", 3)

	tests := []struct {
		name string
		buf  *bytes.Buffer
		want string
	}{
		{"ops", &ops, "ops 1"},
		{"diag", &diag, "diag 2"},
		{"trace", &trace, "trace 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.buf.String()
			if !strings.Contains(got, tt.want) {
				t.Errorf("%s stream = %q, want to contain %q", tt.name, got, tt.want)
			}
			if !strings.Contains(got, "[nystagmus] ") {
				t.Errorf("%s stream missing prefix: %q", tt.name, got)
			}
		})
	}
	if !TraceEnabled() {
		t.Error("TraceEnabled() = false with a trace writer installed")
	}
}

func TestSetLogWriters_NilMutes(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})
	defer SetLogWriters(LogWriters{})

	Diagf("should not panic")
	Tracef("should not panic")
	if TraceEnabled() {
		t.Error("TraceEnabled() = true with no trace writer")
	}
	if ops.Len() != 0 {
		t.Errorf("ops stream got %q, want empty", ops.String())
	}
}
