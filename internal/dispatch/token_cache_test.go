package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Token Tests

func TestToken_AuthorizationValue(t *testing.T) {
	tok := Token{Value: "abc"}
	if got := tok.AuthorizationValue(); got != "Bearer abc" {
		t.Errorf("expected 'Bearer abc', got %q", got)
	}

	tok = Token{Value: "abc", Type: "MAC"}
	if got := tok.AuthorizationValue(); got != "MAC abc" {
		t.Errorf("expected 'MAC abc', got %q", got)
	}
}

func TestToken_Valid(t *testing.T) {
	now := time.Now()

	// Без срока действия — валиден всегда
	tok := Token{Value: "abc"}
	if !tok.Valid(now) {
		t.Error("token without expiry should be valid")
	}

	// Истекает через час — валиден
	tok = Token{Value: "abc", ExpiresAt: now.Add(time.Hour)}
	if !tok.Valid(now) {
		t.Error("token expiring in an hour should be valid")
	}

	// Истекает внутри защитного зазора — уже невалиден
	tok = Token{Value: "abc", ExpiresAt: now.Add(10 * time.Second)}
	if tok.Valid(now) {
		t.Error("token inside expiry skew should be invalid")
	}
}

// TokenCache Tests

func TestTokenCache_Get(t *testing.T) {
	cache := NewTokenCache()
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (Token, error) {
		fetches.Add(1)
		return Token{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	tok, err := cache.Get(ctx, "key", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Value != "tok-1" {
		t.Errorf("expected tok-1, got %s", tok.Value)
	}

	// Повторный Get — из кеша, без нового fetch
	tok, err = cache.Get(ctx, "key", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Value != "tok-1" {
		t.Errorf("expected cached tok-1, got %s", tok.Value)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestTokenCache_SingleFlight(t *testing.T) {
	cache := NewTokenCache()
	ctx := context.Background()

	// Fetch держится открытым, пока все воркеры не запущены:
	// успевшие встают в ожидание текущего fetch, опоздавшие читают
	// готовый кеш. В обоих случаях сетевой вызов ровно один,
	// независимо от того, как планировщик раскидал горутины.
	release := make(chan struct{})
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (Token, error) {
		fetches.Add(1)
		<-release
		return Token{Value: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make([]Token, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(ctx, "key", fetch)
		}(i)
	}
	close(release)
	wg.Wait()

	// Ровно один сетевой вызов на всех
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: unexpected error: %v", i, errs[i])
		}
		if results[i].Value != "shared" {
			t.Errorf("worker %d: expected shared token, got %s", i, results[i].Value)
		}
	}
}

func TestTokenCache_Invalidate(t *testing.T) {
	cache := NewTokenCache()
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (Token, error) {
		n := fetches.Add(1)
		return Token{
			Value:     []string{"first", "second"}[n-1],
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil
	}

	tok, _ := cache.Get(ctx, "key", fetch)
	if tok.Value != "first" {
		t.Errorf("expected first, got %s", tok.Value)
	}

	cache.Invalidate("key")

	if _, ok := cache.Peek("key"); ok {
		t.Error("invalidated token should not remain in cache")
	}

	tok, _ = cache.Get(ctx, "key", fetch)
	if tok.Value != "second" {
		t.Errorf("expected second after invalidate, got %s", tok.Value)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestTokenCache_ExpiredRefetch(t *testing.T) {
	cache := NewTokenCache()
	ctx := context.Background()

	var fetches atomic.Int32
	expired := func(ctx context.Context) (Token, error) {
		fetches.Add(1)
		// Токен уже внутри защитного зазора
		return Token{Value: "stale", ExpiresAt: time.Now().Add(time.Second)}, nil
	}

	cache.Get(ctx, "key", expired)
	cache.Get(ctx, "key", expired)

	// Просроченный токен не переиспользуется
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches for expired token, got %d", got)
	}
}

func TestTokenCache_FetchError(t *testing.T) {
	cache := NewTokenCache()
	ctx := context.Background()

	wantErr := errors.New("token endpoint down")
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (Token, error) {
		fetches.Add(1)
		return Token{}, wantErr
	}

	_, err := cache.Get(ctx, "key", fetch)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// Ошибка не кешируется: следующий Get пробует снова
	_, err = cache.Get(ctx, "key", fetch)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestTokenCache_WaiterCancelled(t *testing.T) {
	cache := NewTokenCache()

	release := make(chan struct{})
	fetch := func(ctx context.Context) (Token, error) {
		<-release
		return Token{Value: "late", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	// Первый Get занимает flight и виснет в fetch
	go cache.Get(context.Background(), "key", fetch)
	time.Sleep(20 * time.Millisecond)

	// Второй Get ждёт flight, но его контекст отменяется раньше
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := cache.Get(ctx, "key", fetch)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline, got %v", err)
	}

	close(release)
}
