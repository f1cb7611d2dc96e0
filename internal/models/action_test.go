// internal/models/action_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireActionDecodeCaptureSplitsTargets(t *testing.T) {
	w := WireAction{
		ActionID:    "a1",
		Action:      "capture",
		CardID:      "KS",
		TargetCards: []string{"build-3", "8D", "build-7", "5C"},
	}
	act, err := w.Decode()
	require.NoError(t, err)

	cap, ok := act.(Capture)
	require.True(t, ok)
	assert.Equal(t, "KS", cap.HandCardID)
	assert.Equal(t, []string{"build-3", "build-7"}, cap.TargetBuildIDs)
	assert.Equal(t, []string{"8D", "5C"}, cap.TargetTableCardIDs)
}

func TestWireActionDecodeCaptureRequiresTargets(t *testing.T) {
	_, err := WireAction{Action: "capture", CardID: "KS"}.Decode()
	assert.Error(t, err)
}

func TestWireActionDecodeRejectsRepeatedTargets(t *testing.T) {
	_, err := WireAction{
		Action:      "capture",
		CardID:      "10S",
		TargetCards: []string{"5C", "5C"},
	}.Decode()
	assert.Error(t, err, "a card cannot be targeted twice")

	_, err = WireAction{
		Action:      "build",
		CardID:      "3S",
		TargetCards: []string{"5C", "5C"},
		BuildValue:  13,
	}.Decode()
	assert.Error(t, err, "a card cannot be consumed twice")
}

func TestWireActionDecodeBuild(t *testing.T) {
	act, err := WireAction{
		Action:      "build",
		CardID:      "3S",
		TargetCards: []string{"5C"},
		BuildValue:  8,
	}.Decode()
	require.NoError(t, err)

	b, ok := act.(BuildAction)
	require.True(t, ok)
	assert.Equal(t, []string{"5C"}, b.ConsumedTableCardIDs)
	assert.Equal(t, 8, b.BuildValue)
	assert.Empty(t, b.TargetBuildID)
}

func TestWireActionDecodeBuildExtension(t *testing.T) {
	act, err := WireAction{
		Action:      "build",
		CardID:      "6H",
		TargetCards: []string{"build-1"},
		BuildValue:  14,
	}.Decode()
	require.NoError(t, err)
	assert.Equal(t, "build-1", act.(BuildAction).TargetBuildID)

	_, err = WireAction{
		Action:      "build",
		CardID:      "6H",
		TargetCards: []string{"build-1", "build-2"},
		BuildValue:  14,
	}.Decode()
	assert.Error(t, err, "extending two builds at once is not a move")
}

func TestWireActionDecodeBuildRequiresValue(t *testing.T) {
	_, err := WireAction{Action: "build", CardID: "3S", TargetCards: []string{"5C"}}.Decode()
	assert.Error(t, err)
}

func TestWireActionDecodeTrail(t *testing.T) {
	act, err := WireAction{Action: "trail", CardID: "2C"}.Decode()
	require.NoError(t, err)
	assert.Equal(t, "2C", act.(Trail).HandCardID)

	_, err = WireAction{Action: "trail", CardID: "2C", TargetCards: []string{"8D"}}.Decode()
	assert.Error(t, err)
}

func TestWireActionDecodeRejectsUnknownType(t *testing.T) {
	_, err := WireAction{Action: "discard", CardID: "2C"}.Decode()
	assert.Error(t, err)

	_, err = WireAction{Action: "trail"}.Decode()
	assert.Error(t, err, "card_id is mandatory")
}
