package diarize

import "transcribeflow/internal/models"

// Merge assigns a speaker label to every ASR segment by maximum
// temporal overlap against the diarization turns. Only a strictly
// larger overlap replaces the current best, so the first-seen turn wins
// exact ties. Segments overlapping no turn get the SPEAKER_UNKNOWN
// sentinel. O(segments x turns), which is fine at transcript scale.
func Merge(segments []models.Segment, turns []models.Turn) []models.Segment {
	merged := make([]models.Segment, len(segments))
	for i, seg := range segments {
		best := models.SpeakerUnknown
		bestOverlap := 0.0

		for _, turn := range turns {
			overlap := overlapSeconds(seg.Start, seg.End, turn.Start, turn.End)
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = turn.Speaker
			}
		}

		seg.Speaker = best
		merged[i] = seg
	}
	return merged
}

func overlapSeconds(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}
