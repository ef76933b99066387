package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewServeCmd(t *testing.T) {
	cmd := NewServeCmd()

	if cmd == nil {
		t.Fatal("NewServeCmd() returned nil")
	}

	// Verify command properties
	if cmd.Use != "serve" {
		t.Errorf("Expected Use='serve', got %q", cmd.Use)
	}
}

func TestServeCommandHelp(t *testing.T) {
	cmd := NewServeCmd()
	cmd.SetArgs([]string{"--help"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("Execute() with --help failed: %v", err)
	}

	output := buf.String()

	expectedStrings := []string{
		"serve",
		"Start",
		"stdio",
		"analyze-project",
		"train-pattern",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("Help output missing %q", expected)
		}
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewServeCmd()

	for _, name := range []string{"journal-dsn", "max-message-bytes", "server-name", "ignore", "max-file-size", "max-files", "max-patterns"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("Flag %q not registered", name)
		}
	}
}

func TestServeCommandProperties(t *testing.T) {
	cmd := NewServeCmd()

	if cmd.Short == "" {
		t.Error("Command missing short description")
	}

	if cmd.Long == "" {
		t.Error("Command missing long description")
	}

	if cmd.RunE == nil {
		t.Error("Command RunE function not set")
	}
}
