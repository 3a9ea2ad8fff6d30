package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hay-kot/criterio"
)

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Successf("Published to %s", "alerts")
	p.Errorf("failed %d", 2)
	p.Infof("note")
	p.CheckItem("Config valid", "")
	p.FailItem("host", "unreachable")

	want := []string{
		Check + " Published to alerts",
		Cross + " failed 2",
		Dot + " note",
		"  " + Check + " Config valid",
		"  " + Cross + " host: unreachable",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrinter_FatalError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).FatalError(errors.New("connection refused"))

	out := buf.String()
	if !strings.Contains(out, "Error") || !strings.Contains(out, "connection refused") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPrinter_FatalErrorFieldErrors(t *testing.T) {
	fieldErrs := criterio.FieldErrors{
		{Field: "host", Err: errors.New("must use http or https")},
		{Field: "topic", Err: errors.New("invalid topic")},
	}
	err := fmt.Errorf("load config: %w", fieldErrs)

	var buf bytes.Buffer
	New(&buf).FatalError(err)

	out := buf.String()
	for _, want := range []string{"Validation Error", "load config", "host: must use http or https", "topic: invalid topic"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_FatalErrorNil(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).FatalError(nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	if got := Ctx(NewContext(context.Background(), p)); got != p {
		t.Error("Ctx did not return the attached printer")
	}
	if Ctx(context.Background()) == nil {
		t.Error("Ctx returned nil without an attached printer")
	}
}
