package tutor

import (
	"fmt"
	"math"
	"strings"

	"ewintr.nl/tutorai/model"
)

const (
	windowBefore     = 60.0
	windowAfter      = 30.0
	historyRange     = 300.0
	historyLimit     = 5
	maxHistoryAnswer = 300
	currentMarker    = " <<<< YOU ARE HERE"
)

type ContextInput struct {
	Title     string
	Summary   *model.Summary
	Chunks    []model.Chunk
	Timestamp float64
	// History is expected in chronological order.
	History []*model.QAEntry
}

// BuildContext renders the text the tutor answers from: the video summary,
// the transcript around the timestamp and recent nearby questions. Sections
// without content are left out.
func BuildContext(in ContextInput) string {
	sections := []string{}
	for _, section := range []string{
		summarySection(in.Title, in.Summary),
		transcriptSection(in.Chunks, in.Timestamp),
		historySection(in.History, in.Timestamp),
	} {
		if section != "" {
			sections = append(sections, section)
		}
	}

	return strings.Join(sections, "\n\n")
}

func summarySection(title string, s *model.Summary) string {
	if s == nil {
		return ""
	}
	if title == "" {
		title = "Unknown"
	}
	lines := []string{
		"=== VIDEO SUMMARY ===",
		"Title: " + title,
		"Topic: " + s.Topic,
		"Level: " + s.Level,
	}
	if len(s.KeyConcepts) > 0 {
		lines = append(lines, "Key concepts: "+strings.Join(s.KeyConcepts, ", "))
	}
	lines = append(lines, "Summary: "+s.Paragraph)

	return strings.Join(lines, "\n")
}

func transcriptSection(chunks []model.Chunk, ts float64) string {
	start, end := math.Max(0, ts-windowBefore), ts+windowAfter
	lines := []string{}
	for _, c := range chunks {
		if !c.Overlaps(start, end) {
			continue
		}
		marker := ""
		if c.Contains(ts) {
			marker = currentMarker
		}
		lines = append(lines, fmt.Sprintf("[%s-%s] %s%s", FormatTimestamp(c.StartTime), FormatTimestamp(c.EndTime), c.Text, marker))
	}
	if len(lines) == 0 {
		return ""
	}

	return fmt.Sprintf("=== TRANSCRIPT (around %s) ===\n%s", FormatTimestamp(ts), strings.Join(lines, "\n"))
}

func historySection(history []*model.QAEntry, ts float64) string {
	nearby := []*model.QAEntry{}
	for _, e := range history {
		if math.Abs(e.VideoTimestamp-ts) <= historyRange {
			nearby = append(nearby, e)
		}
	}
	if len(nearby) == 0 {
		return ""
	}
	if len(nearby) > historyLimit {
		nearby = nearby[len(nearby)-historyLimit:]
	}

	lines := []string{"=== PREVIOUS Q&A (this session) ==="}
	for _, e := range nearby {
		at := FormatTimestamp(e.VideoTimestamp)
		lines = append(lines,
			fmt.Sprintf("[%s] Q: %s", at, e.Question),
			fmt.Sprintf("[%s] A: %s", at, truncate(e.Answer, maxHistoryAnswer)),
		)
	}

	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// FormatTimestamp renders seconds as zero padded MM:SS. Minutes do not roll
// over into hours.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
