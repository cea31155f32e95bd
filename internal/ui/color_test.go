package ui

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureColorOutput(fn func()) string {
	old := color.Output
	oldStdout := os.Stdout

	r, w, _ := os.Pipe()
	color.Output = w
	os.Stdout = w

	fn()

	w.Close()
	color.Output = old
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess(t *testing.T) {
	out := captureColorOutput(func() {
		Success("kard %s created", "dev")
	})
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "kard dev created")
}

func TestError(t *testing.T) {
	out := captureColorOutput(func() {
		Error("no workspace found")
	})
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "no workspace found")
}

func TestWarning(t *testing.T) {
	out := captureColorOutput(func() {
		Warning("Feature %s is duplicated in %s", "git", "env dev")
	})
	assert.Contains(t, out, "⚠")
	assert.Contains(t, out, "Feature git is duplicated in env dev")
}

func TestInfo(t *testing.T) {
	out := captureColorOutput(func() {
		Info("rendering %d instructions", 3)
	})
	assert.Contains(t, out, "rendering 3 instructions")
}

func TestDebug(t *testing.T) {
	out := captureColorOutput(func() {
		Debugging = false
		Debug("hidden")
	})
	assert.Empty(t, out)

	out = captureColorOutput(func() {
		Debugging = true
		defer func() { Debugging = false }()
		Debug("visible")
	})
	assert.Contains(t, out, "visible")
}

func TestStep(t *testing.T) {
	out := captureColorOutput(func() {
		Step(2, "merging %s", "meta")
	})
	assert.Contains(t, out, "[2]")
	assert.Contains(t, out, "merging meta")
}

func TestHeader(t *testing.T) {
	out := captureColorOutput(func() {
		Header("Kards")
	})
	assert.Contains(t, out, "Kards")
}

func TestColorVariables(t *testing.T) {
	require.NotNil(t, Red)
	require.NotNil(t, Green)
	require.NotNil(t, Yellow)
	require.NotNil(t, Blue)
	require.NotNil(t, Cyan)
	require.NotNil(t, Bold)
}
