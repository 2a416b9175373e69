package lessongen

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// Fingerprint is the content-addressable cache key: a sha256 over the
// fields that define lesson identity. Lesson number is deliberately
// excluded; two modules asking for the same topic at the same level share
// content once one earns approval.
func Fingerprint(title, learningStyle, skillLevel, role, industry, schemaVersion string) string {
	h := sha256.New()
	h.Write([]byte(normalizeTitle(title)))
	h.Write([]byte("|"))
	h.Write([]byte(learningStyle))
	h.Write([]byte("|"))
	h.Write([]byte(skillLevel))
	h.Write([]byte("|"))
	h.Write([]byte(role))
	h.Write([]byte("|"))
	h.Write([]byte(industry))
	h.Write([]byte("|"))
	h.Write([]byte(schemaVersion))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Flight guarantees at most one concurrent build per fingerprint in this
// process. Cross-process coverage comes from the queue's idempotency-key
// dedup.
type Flight struct {
	mu      sync.Mutex
	entries map[string]chan struct{}
}

func NewFlight() *Flight {
	return &Flight{entries: map[string]chan struct{}{}}
}

// Begin registers the fingerprint. When leader is true the caller owns the
// build and must call release when done (success or failure). When leader
// is false, wait is the in-progress build's completion channel; the caller
// should wait and then re-check the store.
func (f *Flight) Begin(hash string) (leader bool, wait <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.entries[hash]; ok {
		return false, ch, nil
	}
	ch := make(chan struct{})
	f.entries[hash] = ch
	var once sync.Once
	return true, nil, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.entries, hash)
			f.mu.Unlock()
			close(ch)
		})
	}
}
