package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := NewSlogLogger(slog.New(h)).With(String("doc", "a.pdf"))

	log.Debug("flush", Int("objects", 3), Int64("offset", 1024))
	log.Warn("degraded", Bool("artifact", true), Error("err", errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "msg=flush", "doc=a.pdf", "objects=3", "offset=1024", "level=WARN", "artifact=true", "err=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
