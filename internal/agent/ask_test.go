package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/ask what is open", true},
		{"  /ASK what is open", true},
		{"what is open?", true},
		{"what is open?  ", true},
		{"/ask", false},
		{"/asking for trouble", false},
		{"open settings", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsQuestion(tt.input), tt.input)
	}
}

func TestStripAskPrefix(t *testing.T) {
	assert.Equal(t, "what is open", StripAskPrefix(" /Ask   what is open "))
	assert.Equal(t, "is it done?", StripAskPrefix("is it done?"))
	assert.Equal(t, "/ask", StripAskPrefix("/ask"))
}

func TestPilot_Ask(t *testing.T) {
	box := schemas.RectFromLTRB(480, 280, 520, 320)
	collab := &scriptedCollaborator{answer: schemas.QAResult{
		Answer:   "The settings gear",
		Location: schemas.NormalizedCoord{X: 0.5, Y: 0.5},
		BBox:     &box,
		Note:     "top right",
	}}
	f := newPilotFixture(t, testPilotConfig(), frames(1, 1001, 601), collab)

	ans, err := f.pilot.Ask(context.Background(), "/ask where is settings")
	require.NoError(t, err)
	require.NotNil(t, ans.Pixel)
	assert.Equal(t, schemas.Point{X: 500, Y: 300}, *ans.Pixel)

	require.Len(t, collab.questions, 1)
	assert.Equal(t, "where is settings", collab.questions[0].Question)
	assert.Nil(t, collab.questions[0].Shot.Crop)
	assert.Empty(t, f.exec.executed, "questions never synthesize input")
	assert.Empty(t, collab.decisions)

	assert.Equal(t, []string{
		"answer: The settings gear",
		"location: x=500, y=300 (px)",
		"bbox: (480,280)-(520,320)",
		"note: top right",
	}, AnswerLines(*ans))
}

func TestPilot_AskPixelHintAndNoLocation(t *testing.T) {
	collab := &scriptedCollaborator{answer: schemas.QAResult{Answer: "x", Location: schemas.PixelCoord{X: 12, Y: 34}}}
	f := newPilotFixture(t, testPilotConfig(), frames(1, 100, 100), collab)
	ans, err := f.pilot.Ask(context.Background(), "where?")
	require.NoError(t, err)
	require.NotNil(t, ans.Pixel)
	assert.Equal(t, schemas.Point{X: 12, Y: 34}, *ans.Pixel)

	collab.answer = schemas.QAResult{Answer: "nothing to point at"}
	ans, err = f.pilot.Ask(context.Background(), "what time is it?")
	require.NoError(t, err)
	assert.Nil(t, ans.Pixel)
	assert.Equal(t, []string{"answer: nothing to point at"}, AnswerLines(*ans))
}

func TestPilot_AskEmpty(t *testing.T) {
	f := newPilotFixture(t, testPilotConfig(), frames(1, 10, 10), &scriptedCollaborator{})
	_, err := f.pilot.Ask(context.Background(), "/ask   ")
	assert.Error(t, err)
}
