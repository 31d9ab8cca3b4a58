package diarize

import (
	"testing"

	"transcribeflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMerge_AssignsSpeakerByMaxOverlap(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, End: 3, Text: "hello there"},
		{Start: 3, End: 6, Text: "hi, how are you"},
	}
	turns := []models.Turn{
		{Start: 0, End: 3.2, Speaker: "SPEAKER_00"},
		{Start: 3.2, End: 6.5, Speaker: "SPEAKER_01"},
	}

	merged := Merge(segments, turns)

	assert.Equal(t, "SPEAKER_00", merged[0].Speaker)
	assert.Equal(t, "SPEAKER_01", merged[1].Speaker)
}

func TestMerge_SegmentSpanningTwoTurns(t *testing.T) {
	// 3.0s of overlap with SPEAKER_00 vs 2.0s with SPEAKER_01: the
	// larger overlap wins the whole segment.
	segments := []models.Segment{{Start: 0, End: 5, Text: "one segment"}}
	turns := []models.Turn{
		{Start: 0, End: 3, Speaker: "SPEAKER_00"},
		{Start: 3, End: 5, Speaker: "SPEAKER_01"},
	}

	merged := Merge(segments, turns)

	assert.Equal(t, "SPEAKER_00", merged[0].Speaker)
}

func TestMerge_EqualOverlapKeepsEarlierTurn(t *testing.T) {
	// Ties resolve to the first turn in order because replacement
	// requires a strictly greater overlap.
	segments := []models.Segment{{Start: 0, End: 4, Text: "tied"}}
	turns := []models.Turn{
		{Start: 0, End: 2, Speaker: "SPEAKER_00"},
		{Start: 2, End: 4, Speaker: "SPEAKER_01"},
	}

	merged := Merge(segments, turns)

	assert.Equal(t, "SPEAKER_00", merged[0].Speaker)
}

func TestMerge_NoOverlapGetsUnknownSentinel(t *testing.T) {
	segments := []models.Segment{{Start: 10, End: 12, Text: "late words"}}
	turns := []models.Turn{{Start: 0, End: 5, Speaker: "SPEAKER_00"}}

	merged := Merge(segments, turns)

	assert.Equal(t, models.SpeakerUnknown, merged[0].Speaker)
}

func TestMerge_NoTurns(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, End: 2, Text: "a"},
		{Start: 2, End: 4, Text: "b"},
	}

	merged := Merge(segments, nil)

	for _, seg := range merged {
		assert.Equal(t, models.SpeakerUnknown, seg.Speaker)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	segments := []models.Segment{{Start: 0, End: 2, Text: "a"}}
	turns := []models.Turn{{Start: 0, End: 2, Speaker: "SPEAKER_00"}}

	_ = Merge(segments, turns)

	assert.Empty(t, segments[0].Speaker)
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}
