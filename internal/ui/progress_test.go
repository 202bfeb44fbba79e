package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisplayOnBufferIsPlain(t *testing.T) {
	d := NewDisplay(&bytes.Buffer{})
	assert.False(t, d.IsTTY())
}

func TestProgressBarPlain(t *testing.T) {
	d := NewDisplay(&bytes.Buffer{})

	assert.Equal(t, "[----------]", d.ProgressBar(0, 10))
	assert.Equal(t, "[#####-----]", d.ProgressBar(0.5, 10))
	assert.Equal(t, "[##########]", d.ProgressBar(1, 10))
	assert.Equal(t, "[##########]", d.ProgressBar(3, 10), "clamped above")
	assert.Equal(t, "[----------]", d.ProgressBar(-1, 10), "clamped below")
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)

	d.RenderStatus(Status{
		SessionID: "0123456789abcdef",
		Phase:     "resumable",
		Score:     42.5,
		MaxScore:  100,
		Percent:   50,
		Answered:  2,
		Total:     4,
		Index:     1,
		Current:   "How well do you sleep?",
		Categories: []Category{
			{ID: "health", Score: 20, Max: 40},
			{ID: "mind", Score: 22.5, Max: 60},
		},
		Goal:   80,
		Notice: "Saved answers found.",
	})

	out := buf.String()
	assert.Contains(t, out, "session 01234567 (resumable)")
	assert.Contains(t, out, "42.5 / 100")
	assert.Contains(t, out, "  2 / 4")
	assert.Contains(t, out, "Current   2. How well do you sleep?")
	assert.Contains(t, out, "Goal       80.0")
	assert.Contains(t, out, "health")
	assert.Contains(t, out, "Saved answers found.")
	assert.NotContains(t, out, "\x1b[", "no escape codes off a terminal")
}

func TestRenderQuestions(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)

	d.RenderQuestions([]QuestionRow{
		{Index: 0, ID: "health.sleep", Title: "Sleep", Points: 7, Answer: 8, Category: "health"},
		{Index: 1, ID: "health.movement", Title: "Movement", Points: 7, Current: true, Category: "health"},
		{Index: 2, ID: "mind.focus", Title: strings.Repeat("x", 60), Points: 5, Category: "mind"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "health", lines[0])
	assert.Contains(t, lines[1], " 8  health.sleep (7 pts)")
	assert.True(t, strings.HasPrefix(lines[2], ">  2. Movement"))
	assert.Contains(t, lines[2], " -  health.movement")
	assert.Equal(t, "mind", lines[3])
	assert.Contains(t, lines[4], "...")
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)
	d.Success("saved %d", 3)
	d.Warn("careful")
	d.Error("failed: %s", "boom")
	assert.Equal(t, "saved 3\ncareful\nfailed: boom\n", buf.String())
}
