package anonymizer

import "fmt"

// typeLabels is the fixed display label per entity type, used inside tags
var typeLabels = map[EntityType]string{
	EntityName:       "이름",
	EntityPhone:      "연락처",
	EntityEmail:      "이메일",
	EntityAddress:    "주소",
	EntityIdentifier: "주민번호",
	EntityFacility:   "시설",
	EntityDate:       "날짜",
}

// TagAllocator assigns stable replacement tags per entity type within one
// document-processing session. The same original always maps to the same
// tag; distinct originals never share one. It is a per-document value, not
// a shared singleton: every Anonymize call constructs its own.
type TagAllocator struct {
	counters map[EntityType]int
	tags     map[string]string
}

// NewTagAllocator returns a fresh allocator with all counters at zero
func NewTagAllocator() *TagAllocator {
	return &TagAllocator{
		counters: make(map[EntityType]int),
		tags:     make(map[string]string),
	}
}

// Allocate returns the tag for original, minting a new one on first sight.
// Repeated calls with the same original return the same tag regardless of
// the entity type passed later.
func (a *TagAllocator) Allocate(original string, entityType EntityType) string {
	if tag, ok := a.tags[original]; ok {
		return tag
	}

	label, ok := typeLabels[entityType]
	if !ok {
		label = "정보"
	}

	a.counters[entityType]++
	tag := fmt.Sprintf("[%s_%d]", label, a.counters[entityType])
	a.tags[original] = tag
	return tag
}

// Len returns the number of originals assigned so far
func (a *TagAllocator) Len() int {
	return len(a.tags)
}
