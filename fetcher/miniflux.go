package fetcher

import (
	"miniflux.app/client"
)

const minifluxPageSize = 100

type FeedEntry struct {
	EntryID   int64
	FeedID    int64
	URL       string
	Title     string
	YoutubeID string
}

type FeedReader interface {
	Unread() ([]FeedEntry, error)
	MarkRead(entryID int64) error
}

type MinifluxInfo struct {
	Endpoint string
	ApiKey   string
}

type Miniflux struct {
	client *client.Client
}

func NewMiniflux(mflInfo MinifluxInfo) *Miniflux {
	return &Miniflux{
		client: client.New(mflInfo.Endpoint, mflInfo.ApiKey),
	}
}

// Unread returns the unread entries that link to a YouTube video, oldest
// first. Other entries are left alone.
func (m *Miniflux) Unread() ([]FeedEntry, error) {
	var entries []FeedEntry
	for offset := 0; ; offset += minifluxPageSize {
		result, err := m.client.Entries(&client.Filter{
			Status:    client.EntryStatusUnread,
			Order:     "id",
			Direction: "asc",
			Limit:     minifluxPageSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, youtubeEntries(result.Entries)...)
		if len(result.Entries) < minifluxPageSize || offset+len(result.Entries) >= result.Total {
			return entries, nil
		}
	}
}

func (m *Miniflux) MarkRead(entryID int64) error {
	return m.client.UpdateEntries([]int64{entryID}, client.EntryStatusRead)
}

func youtubeEntries(in client.Entries) []FeedEntry {
	out := make([]FeedEntry, 0, len(in))
	for _, entry := range in {
		ytID, err := ExtractVideoID(entry.URL)
		if err != nil {
			continue
		}
		out = append(out, FeedEntry{
			EntryID:   entry.ID,
			FeedID:    entry.FeedID,
			URL:       entry.URL,
			Title:     entry.Title,
			YoutubeID: string(ytID),
		})
	}
	return out
}
