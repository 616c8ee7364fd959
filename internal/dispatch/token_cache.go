package dispatch

import (
	"context"
	"sync"
	"time"
)

// expirySkew — запас до истечения токена, после которого кешированное
// значение считается просроченным и запрашивается новое.
const expirySkew = 30 * time.Second

// Token — учётные данные, выданные auth-адаптером.
type Token struct {
	// Value — сам токен.
	Value string

	// Type — тип для заголовка Authorization. Пустой — "Bearer".
	Type string

	// ExpiresAt — время истечения. Zero — бессрочный.
	ExpiresAt time.Time
}

// AuthorizationValue возвращает значение заголовка Authorization.
func (t Token) AuthorizationValue() string {
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

// Valid возвращает true, если токен ещё можно использовать.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(t.ExpiresAt.Add(-expirySkew))
}

// TokenCache — кеш токенов по ключу адаптера с single-flight
// обновлением.
//
// Инвариант: на один ключ в любой момент времени идёт не больше
// одного обновления. Конкурентные вызовы, заставшие обновление
// в полёте, ждут его завершения и получают тот же результат —
// свой запрос они не начинают.
//
// Токены — единственное состояние, разделяемое между конкурентными
// run'ами; вся координация сосредоточена здесь.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]Token
	flights map[string]*flight
}

// flight — одно обновление токена в полёте.
// Поля token/err заполняются до закрытия done.
type flight struct {
	done  chan struct{}
	token Token
	err   error
}

// NewTokenCache создаёт пустой кеш.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]Token),
		flights: make(map[string]*flight),
	}
}

// Get возвращает валидный токен для ключа, при необходимости выполняя
// fetch. Если обновление для ключа уже идёт, вызов ждёт его результат
// вместо запуска собственного.
//
// Fetch выполняется с контекстом инициатора обновления; ожидающие
// вызовы отменяются своим контекстом независимо.
func (c *TokenCache) Get(ctx context.Context, key string, fetch func(context.Context) (Token, error)) (Token, error) {
	c.mu.Lock()
	if tok, ok := c.entries[key]; ok && tok.Valid(time.Now()) {
		c.mu.Unlock()
		return tok, nil
	}
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.token, f.err
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	// fetch идёт вне мьютекса: сетевое обновление не должно
	// блокировать обращения к другим ключам.
	tok, err := fetch(ctx)

	c.mu.Lock()
	delete(c.flights, key)
	if err == nil {
		c.entries[key] = tok
	}
	c.mu.Unlock()

	f.token, f.err = tok, err
	close(f.done)

	return tok, err
}

// Invalidate сбрасывает кешированный токен ключа.
// Вызывается при 401/403 перед повторной попыткой.
func (c *TokenCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Peek возвращает кешированный токен без обновления.
func (c *TokenCache) Peek(key string) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.entries[key]
	return tok, ok
}
