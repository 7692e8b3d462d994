package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestMissingArgumentPrintsUsage(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Fatal("missing root id should fail")
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("expected usage text, got:\n%s", out.String())
	}
}

func TestTooManyArgumentsRejected(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"root-1", "root-2"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("extra arguments should fail")
	}
}

func TestUnknownTransportRejected(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"root-1", "--transport", "carrier-pigeon"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("unknown transport should fail")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("error should name the bad transport, got %v", err)
	}
}
