package hostfunc

import (
	"errors"
	"sync"
	"testing"
)

func TestSessionStoreUniqueHandles(t *testing.T) {
	store := NewSessionStore()
	defer store.CloseAll()

	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Create()
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d unique handles, got %d", n, len(seen))
	}
	if store.Len() != n {
		t.Errorf("Len = %d, want %d", store.Len(), n)
	}
}

func TestSessionStoreSeparateJars(t *testing.T) {
	store := NewSessionStore()
	defer store.CloseAll()

	a, _ := store.Create()
	b, _ := store.Create()
	sa, _ := store.Get(a)
	sb, _ := store.Get(b)

	if sa.client.Jar == sb.client.Jar {
		t.Error("sessions share a cookie jar")
	}
	if sa.transport == sb.transport {
		t.Error("sessions share a transport")
	}
}

func TestSessionStoreGetUnknown(t *testing.T) {
	store := NewSessionStore()
	if _, ok := store.Get("nope"); ok {
		t.Error("expected lookup of unknown handle to fail")
	}
}

func TestSessionStoreClose(t *testing.T) {
	store := NewSessionStore()
	id, _ := store.Create()

	if !store.Close(id) {
		t.Error("expected close of live session to succeed")
	}
	if store.Close(id) {
		t.Error("expected second close to report missing session")
	}
	if _, ok := store.Get(id); ok {
		t.Error("closed session still resolvable")
	}
}

func TestSessionStoreMaxSessions(t *testing.T) {
	store := NewSessionStore(WithMaxSessions(2))
	defer store.CloseAll()

	store.Create()
	store.Create()
	if _, err := store.Create(); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}

	store.CloseAll()
	if store.Len() != 0 {
		t.Errorf("Len after CloseAll = %d", store.Len())
	}
	if _, err := store.Create(); err != nil {
		t.Errorf("create after CloseAll: %v", err)
	}
}
