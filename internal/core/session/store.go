package session

import (
	"context"
	"sync"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Store は外部 ID をキーとした会話セッションの保管庫です。
type Store interface {
	Get(externalID string) (Session, bool)
	Put(s Session)
	Delete(externalID string)
	EvictIdle(now time.Time) int
	Len() int
}

// MemoryStore はプロセス内メモリ上の Store です。再起動で失われますが、
// 未登録であることは社員ディレクトリの登録状態から再導出できます。
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	idleTTL  time.Duration
	clock    Clock
}

// NewMemoryStore は MemoryStore を生成します。idleTTL が 0 以下の場合は追い出しを行いません。
func NewMemoryStore(idleTTL time.Duration, clock Clock) *MemoryStore {
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		idleTTL:  idleTTL,
		clock:    clock,
	}
}

// Get はセッションを返し、最終アクセス時刻を更新します。
func (m *MemoryStore) Get(externalID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[externalID]
	if !ok {
		return Session{}, false
	}
	s.LastTouched = m.clock.Now()
	m.sessions[externalID] = s
	return s, true
}

// Put はセッションを保存します。
func (m *MemoryStore) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.LastTouched = m.clock.Now()
	m.sessions[s.ExternalID] = s
}

// Delete はセッションを削除します。
func (m *MemoryStore) Delete(externalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, externalID)
}

// Len は保持しているセッション数を返します。
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// EvictIdle は idleTTL より長く触られていないセッションを削除し、その件数を返します。
func (m *MemoryStore) EvictIdle(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastTouched) > m.idleTTL {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run は interval ごとに EvictIdle を実行します。ctx がキャンセルされると戻ります。
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration, onEvict func(n int)) {
	if interval <= 0 || m.idleTTL <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(m.clock.Now()); n > 0 && onEvict != nil {
				onEvict(n)
			}
		}
	}
}
