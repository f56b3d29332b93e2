package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_MonotonicAndValid(t *testing.T) {
	a := New()
	b := New()

	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
	assert.Less(t, a, b)
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("qr")
	assert.True(t, strings.HasPrefix(id, "qr_"))
	assert.True(t, Valid(strings.TrimPrefix(id, "qr_")))
}

func TestNew_ConcurrentUnique(t *testing.T) {
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- New()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestValid_RejectsGarbage(t *testing.T) {
	assert.False(t, Valid("not-a-ulid"))
}
