package storage

import "sync"

// ChunkStore buffers raw audio chunks per session key until the session
// is finished. Each key has its own lock; the map lock is held only to
// look up, insert or detach an entry.
type ChunkStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionBuffer
}

type sessionBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	bytes  int
	// taken is set once TakeAll detached this buffer; late appenders
	// must go back to the map for a fresh one.
	taken bool
}

// NewChunkStore creates an empty store
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		sessions: make(map[string]*sessionBuffer),
	}
}

// Append adds a copy of chunk to the end of the session's sequence and
// returns the new chunk count.
func (s *ChunkStore) Append(sessionKey string, chunk []byte) int {
	n, _ := s.AppendLimited(sessionKey, chunk, 0)
	return n
}

// AppendLimited is Append with a cap on the session's total bytes. When
// the chunk would push the session past maxBytes nothing is stored and
// ok is false. maxBytes <= 0 means no cap.
func (s *ChunkStore) AppendLimited(sessionKey string, chunk []byte, maxBytes int) (count int, ok bool) {
	data := make([]byte, len(chunk))
	copy(data, chunk)

	for {
		buf := s.getOrCreate(sessionKey)

		buf.mu.Lock()
		if buf.taken {
			buf.mu.Unlock()
			continue
		}
		if maxBytes > 0 && buf.bytes+len(data) > maxBytes {
			n := len(buf.chunks)
			buf.mu.Unlock()
			return n, false
		}
		buf.chunks = append(buf.chunks, data)
		buf.bytes += len(data)
		n := len(buf.chunks)
		buf.mu.Unlock()
		return n, true
	}
}

// SizeOf returns the number of chunks buffered for the session
func (s *ChunkStore) SizeOf(sessionKey string) int {
	buf := s.get(sessionKey)
	if buf == nil {
		return 0
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if buf.taken {
		return 0
	}
	return len(buf.chunks)
}

// BytesOf returns the summed chunk length buffered for the session
func (s *ChunkStore) BytesOf(sessionKey string) int {
	buf := s.get(sessionKey)
	if buf == nil {
		return 0
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if buf.taken {
		return 0
	}
	return buf.bytes
}

// TakeAll returns the session's chunks in append order and removes the
// session. A second call without new appends returns nil.
func (s *ChunkStore) TakeAll(sessionKey string) [][]byte {
	s.mu.Lock()
	buf, ok := s.sessions[sessionKey]
	if ok {
		delete(s.sessions, sessionKey)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.taken = true
	chunks := buf.chunks
	buf.chunks = nil
	buf.bytes = 0
	return chunks
}

// Sessions returns the number of sessions currently accumulating
func (s *ChunkStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *ChunkStore) get(sessionKey string) *sessionBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionKey]
}

func (s *ChunkStore) getOrCreate(sessionKey string) *sessionBuffer {
	if buf := s.get(sessionKey); buf != nil {
		return buf
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.sessions[sessionKey]
	if !ok {
		buf = &sessionBuffer{}
		s.sessions[sessionKey] = buf
	}
	return buf
}
