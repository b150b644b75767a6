package transcript

import (
	"regexp"
	"time"

	"ewintr.nl/tutorai/model"
)

const DefaultMergeWindow = 30 * time.Second

var sentenceEnd = regexp.MustCompile(`[.!?]\s*$`)

// Merge coalesces segments into chunks of roughly window length in a single
// forward pass. A chunk is only closed on a sentence end, and a segment is
// never split, so chunks can be longer than the window.
func Merge(segments []model.Segment, window time.Duration) []model.Chunk {
	if len(segments) == 0 {
		return []model.Chunk{}
	}
	if window <= 0 {
		window = DefaultMergeWindow
	}
	w := window.Seconds()

	chunks := []model.Chunk{}
	current := model.Chunk{
		StartTime: segments[0].StartTime,
		EndTime:   segments[0].EndTime,
		Text:      segments[0].Text,
	}
	for _, seg := range segments[1:] {
		elapsed := seg.EndTime - current.StartTime
		if elapsed >= w && sentenceEnd.MatchString(current.Text) {
			chunks = append(chunks, current)
			current = model.Chunk{
				StartTime: seg.StartTime,
				EndTime:   seg.EndTime,
				Text:      seg.Text,
			}
			continue
		}
		current.EndTime = max(current.EndTime, seg.EndTime)
		current.Text += " " + seg.Text
	}

	return append(chunks, current)
}
