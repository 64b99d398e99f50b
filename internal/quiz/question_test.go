package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playback-console/internal/playback"
)

func TestDecode(t *testing.T) {
	q, err := Decode([]byte(`{"question":"Capital of France?","answers":["Berlin","Paris","Rome"],"correctIndex":1}`))
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", q.Question)
	assert.Equal(t, []string{"Berlin", "Paris", "Rome"}, q.Answers)
	assert.True(t, q.IsCorrect(1))
	assert.False(t, q.IsCorrect(0))
	assert.False(t, q.IsCorrect(7))
}

func TestDecode_rejects(t *testing.T) {
	tests := map[string]string{
		"malformed":            `{"question":`,
		"no answers":           `{"question":"q","answers":[],"correctIndex":0}`,
		"index too high":       `{"question":"q","answers":["a"],"correctIndex":1}`,
		"negative index":       `{"question":"q","answers":["a"],"correctIndex":-1}`,
		"plain text":           `hello`,
		"invalid utf8":         "\xff\xfe",
		"missing question":     `{"answers":["a","b"],"correctIndex":0}`,
		"null question":        `{"question":null,"answers":["a","b"],"correctIndex":0}`,
		"missing answers":      `{"question":"q","correctIndex":0}`,
		"missing correctIndex": `{"question":"q","answers":["a","b"]}`,
		"null correctIndex":    `{"question":"q","answers":["a","b"],"correctIndex":null}`,
		"upper case keys":      `{"QUESTION":"q","ANSWERS":["a","b"],"correctIndex":0}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.ErrorIs(t, err, errInvalidQuestion)
		})
	}
}

func TestOverlay(t *testing.T) {
	o := NewOverlay(nil, nil)

	_, err := o.Answer(0)
	assert.ErrorIs(t, err, ErrNoQuestion)

	assert.False(t, o.OnCue(playback.Cue{Type: playback.CueTextMetadata, Text: "garbage"}))
	_, shown := o.Current()
	assert.False(t, shown)

	require.True(t, o.OnCue(playback.Cue{Type: playback.CueTextMetadata, Text: `{"question":"q","answers":["x","y"],"correctIndex":1}`}))
	q, shown := o.Current()
	require.True(t, shown)
	assert.Equal(t, "q", q.Question)

	correct, err := o.Answer(1)
	require.NoError(t, err)
	assert.True(t, correct)

	_, shown = o.Current()
	assert.False(t, shown, "answering hides the question")
}
