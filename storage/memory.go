package storage

import (
	"context"
	"sort"
	"sync"

	"ewintr.nl/tutorai/model"
	"github.com/google/uuid"
)

// Memory keeps videos, chunks and Q&A entries in process. It implements
// VideoRepository, ChunkRepository and QARepository and is used when no
// database is configured and in tests.
type Memory struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]*model.Video
	chunks map[uuid.UUID][]model.Chunk
	qa     []*model.QAEntry
}

func NewMemory() *Memory {
	return &Memory{
		videos: map[uuid.UUID]*model.Video{},
		chunks: map[uuid.UUID][]model.Chunk{},
		qa:     []*model.QAEntry{},
	}
}

func (m *Memory) Create(_ context.Context, video *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.videos {
		if v.YoutubeID == video.YoutubeID || v.ID == video.ID {
			return ErrAlreadyExists
		}
	}
	m.videos[video.ID] = copyVideo(video)

	return nil
}

func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyVideo(v), nil
}

func (m *Memory) FindByYoutubeID(_ context.Context, ytID model.YoutubeVideoID) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.videos {
		if v.YoutubeID == ytID {
			return copyVideo(v), nil
		}
	}

	return nil, ErrNotFound
}

func (m *Memory) FindByStatus(_ context.Context, statuses ...model.VideoStatus) ([]*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	videos := []*model.Video{}
	for _, v := range m.videos {
		for _, s := range statuses {
			if v.Status == s {
				videos = append(videos, copyVideo(v))
				break
			}
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})

	return videos, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.VideoStatus) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	if v.Status != from {
		return ErrStatusConflict
	}
	v.Status = to

	return nil
}

func (m *Memory) Complete(_ context.Context, id uuid.UUID, summary model.Summary, provenance model.Provenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	if v.Status != model.StatusProcessing {
		return ErrStatusConflict
	}
	v.Summary = &summary
	v.Provenance = provenance
	v.Status = model.StatusReady

	return nil
}

func (m *Memory) SaveBatch(_ context.Context, videoID uuid.UUID, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[videoID]; !ok {
		return ErrNotFound
	}
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.VideoID = videoID
		m.chunks[videoID] = append(m.chunks[videoID], c)
	}

	return nil
}

func (m *Memory) ReplaceBatch(_ context.Context, videoID uuid.UUID, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[videoID]; !ok {
		return ErrNotFound
	}
	replaced := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.VideoID = videoID
		replaced = append(replaced, c)
	}
	m.chunks[videoID] = replaced

	return nil
}

func (m *Memory) DeleteByVideo(_ context.Context, videoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.chunks, videoID)

	return nil
}

func (m *Memory) FindByVideo(_ context.Context, videoID uuid.UUID) ([]model.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedChunks(m.chunks[videoID], func(model.Chunk) bool { return true }), nil
}

func (m *Memory) FindInWindow(_ context.Context, videoID uuid.UUID, start, end float64) ([]model.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedChunks(m.chunks[videoID], func(c model.Chunk) bool {
		return c.Overlaps(start, end)
	}), nil
}

func (m *Memory) Append(_ context.Context, entry *model.QAEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[entry.VideoID]; !ok {
		return ErrNotFound
	}
	e := *entry
	m.qa = append(m.qa, &e)

	return nil
}

func (m *Memory) FindByUserVideo(_ context.Context, userID string, videoID uuid.UUID) ([]*model.QAEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []*model.QAEntry{}
	for _, e := range m.qa {
		if e.UserID == userID && e.VideoID == videoID {
			c := *e
			entries = append(entries, &c)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

func sortedChunks(all []model.Chunk, keep func(model.Chunk) bool) []model.Chunk {
	chunks := []model.Chunk{}
	for _, c := range all {
		if keep(c) {
			chunks = append(chunks, c)
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].StartTime < chunks[j].StartTime
	})

	return chunks
}

func copyVideo(v *model.Video) *model.Video {
	c := *v
	if v.Summary != nil {
		s := *v.Summary
		s.KeyConcepts = append([]string{}, v.Summary.KeyConcepts...)
		c.Summary = &s
	}
	return &c
}
