package model

// Summary is stored as JSON on the video row. The title lives on the video
// itself.
type Summary struct {
	Topic       string   `json:"topic"`
	Level       string   `json:"level"`
	KeyConcepts []string `json:"key_concepts"`
	Paragraph   string   `json:"paragraph"`
}

func PlaceholderSummary() Summary {
	return Summary{
		Topic:       "Unable to generate summary",
		Level:       "unknown",
		KeyConcepts: []string{},
		Paragraph:   "Summary generation failed. The video can still be used for Q&A.",
	}
}
