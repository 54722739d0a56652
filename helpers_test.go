package nemochat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// Test helper functions shared across test files

func intPtr(i int) *int {
	return &i
}

func float64Ptr(f float64) *float64 {
	return &f
}

var testTime = time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testTime
}

// wire concatenates encoded frames into one stream.
func wire(frames ...[]byte) []byte {
	var b []byte
	for _, f := range frames {
		b = append(b, f...)
	}
	return b
}

// chunkReader returns one chunk per Read call, then err (io.EOF when nil).
type chunkReader struct {
	chunks [][]byte
	err    error
	reads  int
}

func newChunkReader(err error, chunks ...[]byte) *chunkReader {
	return &chunkReader{chunks: chunks, err: err}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.reads++
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	c := r.chunks[0]
	n := copy(p, c)
	if n < len(c) {
		r.chunks[0] = c[n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// splitEvery cuts data into chunks of n bytes.
func splitEvery(data []byte, n int) [][]byte {
	var chunks [][]byte
	for len(data) > n {
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}

// recordingSink collects deltas. It refuses content once limit deltas were
// accepted (limit 0 accepts everything).
type recordingSink struct {
	deltas []string
	limit  int
}

func (s *recordingSink) AppendContent(text string) bool {
	if s.limit > 0 && len(s.deltas) >= s.limit {
		return false
	}
	s.deltas = append(s.deltas, text)
	return true
}

func (s *recordingSink) String() string {
	return strings.Join(s.deltas, "")
}

// fakeUpstream serves a canned body and records every request.
type fakeUpstream struct {
	mu       sync.Mutex
	body     []byte
	openErr  error
	readErr  error
	requests []*ChatRequest
}

func (u *fakeUpstream) Name() ProviderID {
	return ProviderID("fake")
}

func (u *fakeUpstream) Open(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	u.mu.Lock()
	u.requests = append(u.requests, req)
	u.mu.Unlock()
	if u.openErr != nil {
		return nil, u.openErr
	}
	if u.readErr != nil {
		return io.NopCloser(newChunkReader(u.readErr, u.body)), nil
	}
	return io.NopCloser(strings.NewReader(string(u.body))), nil
}

func (u *fakeUpstream) lastRequest() *ChatRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		return nil
	}
	return u.requests[len(u.requests)-1]
}

// pipeUpstream hands out the read side of a pipe the test writes to.
type pipeUpstream struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	opened chan struct{}
}

func newPipeUpstream() *pipeUpstream {
	r, w := io.Pipe()
	return &pipeUpstream{r: r, w: w, opened: make(chan struct{})}
}

func (u *pipeUpstream) Name() ProviderID {
	return ProviderID("pipe")
}

func (u *pipeUpstream) Open(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	close(u.opened)
	return u.r, nil
}

// memoryKV is a minimal KeyValueStore for persistence tests.
type memoryKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error

	// failKey, when set, makes Set fail for that key only
	failKey string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.failKey != "" && key == m.failKey {
		return errors.New("write rejected")
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// getSetKV is a KeyValueStore without Delete.
type getSetKV struct {
	kv *memoryKV
}

func (s getSetKV) Get(ctx context.Context, key string) ([]byte, error) {
	return s.kv.Get(ctx, key)
}

func (s getSetKV) Set(ctx context.Context, key string, value []byte) error {
	return s.kv.Set(ctx, key, value)
}
