// Package tag implements the per-node tag-group / tag attribute
// containers (spec.md §3 Tag group / Tag, §4.6).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package tag

import (
	"sync"

	"github.com/verse-project/verse/container"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/vtypes"
)

// Flag mirrors VSTag's TAG_INITIALIZED / TAG_UNINITIALIZED (vs_tag.h).
type Flag uint8

const (
	Uninitialized Flag = iota
	Initialized
)

// Tag is a per-tag-group typed attribute (spec.md §3 Tag). It carries
// its own follower list but has no subscriber list of its own: a
// session subscribes to the containing tag group, which fans every
// contained tag out automatically (spec.md §4.5 "Subscribe to a tag
// group").
type Tag struct {
	mu         sync.RWMutex
	id         uint16
	dataType   vtypes.DataType
	count      uint8
	customType uint16
	flag       Flag
	value      [4 * 8]byte
	strValue   string

	Folls *fsm.Machine // per-session follower lifecycle (spec.md §4.4)
}

func NewTag(id uint16, dataType vtypes.DataType, count uint8, customType uint16) *Tag {
	return &Tag{
		id:         id,
		dataType:   dataType,
		count:      count,
		customType: customType,
		flag:       Uninitialized,
		Folls:      fsm.NewMachine(),
	}
}

func (t *Tag) Key() uint16 { return t.id }

func (t *Tag) ID() uint16             { return t.id }
func (t *Tag) DataType() vtypes.DataType { return t.dataType }
func (t *Tag) Count() uint8           { return t.count }
func (t *Tag) CustomType() uint16     { return t.customType }

func (t *Tag) Initialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flag == Initialized
}

// SetValue copies raw (vector types) into the tag's value buffer and
// marks it initialized (spec.md §4.6 "Tag set of vector type copies
// the payload bytes into the value buffer").
func (t *Tag) SetValue(raw [4 * 8]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = raw
	t.flag = Initialized
}

// Value returns the raw value buffer for vector types.
func (t *Tag) Value() [4 * 8]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// SetString replaces the string8 value. The source distinguishes
// same-length in-place replace from reallocation; in Go this
// distinction has no observable effect (strings are immutable values)
// so SetString simply assigns — documented here because spec.md §4.6
// calls the distinction out explicitly as an implementation detail of
// the C server, not a protocol guarantee.
func (t *Tag) SetString(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strValue = s
	t.flag = Initialized
}

func (t *Tag) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strValue
}

// TagGroup is a per-node named bucket of tags (spec.md §3 Tag group).
type TagGroup struct {
	mu         sync.RWMutex
	id         uint16
	customType uint16
	tags       *container.Hashed[uint16, *Tag]
	lastTagID  uint16
	version    uint32
	savedVersion uint32
	crc32      uint32

	Folls *fsm.Machine                 // sessions that know this tag group exists
	subs  map[session.ID]struct{}      // sessions subscribed to its contents
}

func NewTagGroup(id uint16, customType uint16) *TagGroup {
	return &TagGroup{
		id:         id,
		customType: customType,
		tags:       container.NewHashed[uint16, *Tag](container.SmallTable, nil),
		Folls:      fsm.NewMachine(),
		subs:       make(map[session.ID]struct{}),
	}
}

func (tg *TagGroup) Key() uint16 { return tg.id }

func (tg *TagGroup) ID() uint16         { return tg.id }
func (tg *TagGroup) CustomType() uint16 { return tg.customType }

func (tg *TagGroup) Tags() *container.Hashed[uint16, *Tag] { return tg.tags }

// AllocateTagID finds the next unused tag id starting from
// last_tag_id, wrapping in [0, 65534] (spec.md §4.6).
func (tg *TagGroup) AllocateTagID() (uint16, bool) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	start := tg.lastTagID
	for i := 0; i < 65535; i++ {
		candidate := uint16((int(start) + i) % 65535)
		if _, exists := tg.tags.Find(candidate); !exists {
			tg.lastTagID = candidate
			return candidate, true
		}
	}
	return 0, false
}

// HasCustomType reports whether a tag with the given custom_type
// already exists in this group (spec.md §4.6 duplicate rejection).
func (tg *TagGroup) HasCustomType(customType uint16) bool {
	found := false
	tg.tags.Each(func(t *Tag) {
		if t.CustomType() == customType {
			found = true
		}
	})
	return found
}

func (tg *TagGroup) IncVersion() {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.version++
}

func (tg *TagGroup) Version() uint32 {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	return tg.version
}

func (tg *TagGroup) SavedVersion() uint32 {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	return tg.savedVersion
}

func (tg *TagGroup) SetSavedVersion(v uint32) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.savedVersion = v
}

func (tg *TagGroup) SetCRC32(c uint32) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.crc32 = c
}

func (tg *TagGroup) CRC32() uint32 {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	return tg.crc32
}

// AddSub registers sess as subscribed to this tag group's contents.
func (tg *TagGroup) AddSub(id session.ID) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.subs[id] = struct{}{}
}

// RemoveSub unsubscribes sess.
func (tg *TagGroup) RemoveSub(id session.ID) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	delete(tg.subs, id)
}

func (tg *TagGroup) IsSub(id session.ID) bool {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	_, ok := tg.subs[id]
	return ok
}

func (tg *TagGroup) Subs() []session.ID {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	out := make([]session.ID, 0, len(tg.subs))
	for id := range tg.subs {
		out = append(out, id)
	}
	return out
}
