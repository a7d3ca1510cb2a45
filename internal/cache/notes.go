package cache

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage"
)

// NoteCache 注释读取缓存
//
// 特点：
// - 按缺陷缓存完整注释列表，按 ID 缓存单条注释
// - singleflight 合并并发未命中，同一缺陷只打一次库
// - 写路径整体失效该缺陷的全部口径，不做增量维护
type NoteCache struct {
	notes storage.NoteRepository

	mu     sync.RWMutex
	byBug  map[int][]domain.Note
	byNote map[int]*domain.Note

	group singleflight.Group
}

// NewNoteCache 创建注释缓存。
func NewNoteCache(notes storage.NoteRepository) *NoteCache {
	return &NoteCache{
		notes:  notes,
		byBug:  make(map[int][]domain.Note),
		byNote: make(map[int]*domain.Note),
	}
}

// ListNotes 取某缺陷的全部注释，按提交时间升序。
func (c *NoteCache) ListNotes(bugID int) ([]domain.Note, error) {
	c.mu.RLock()
	if cached, ok := c.byBug[bugID]; ok {
		c.mu.RUnlock()
		return copyNotes(cached), nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("bug:"+strconv.Itoa(bugID), func() (interface{}, error) {
		notes, err := c.notes.ListNotes(bugID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.byBug[bugID] = notes
		for i := range notes {
			n := notes[i]
			c.byNote[n.ID] = &n
		}
		c.mu.Unlock()
		return notes, nil
	})
	if err != nil {
		return nil, err
	}
	return copyNotes(v.([]domain.Note)), nil
}

// GetNote 取单条注释。
func (c *NoteCache) GetNote(id int) (*domain.Note, error) {
	c.mu.RLock()
	if cached, ok := c.byNote[id]; ok {
		c.mu.RUnlock()
		out := *cached
		return &out, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("note:"+strconv.Itoa(id), func() (interface{}, error) {
		note, err := c.notes.GetNote(id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.byNote[id] = note
		c.mu.Unlock()
		return note, nil
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*domain.Note)
	return &out, nil
}

// InvalidateBug 失效某缺陷的注释列表及其全部单条缓存。
func (c *NoteCache) InvalidateBug(bugID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.byBug[bugID]; ok {
		for i := range cached {
			delete(c.byNote, cached[i].ID)
		}
		delete(c.byBug, bugID)
		return
	}
	// 列表未缓存时兜底扫单条
	for id, n := range c.byNote {
		if n.BugID == bugID {
			delete(c.byNote, id)
		}
	}
}

func copyNotes(src []domain.Note) []domain.Note {
	out := make([]domain.Note, len(src))
	copy(out, src)
	return out
}
