package transport

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Rand — источник случайных чисел для выбора узла и routing key.
type Rand interface {
	// IntN возвращает число из [0, n). n > 0.
	IntN(n int) int
}

// NewRand возвращает потокобезопасный детерминированный источник.
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed))}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// globalRand использует глобальный источник math/rand/v2.
type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// RoutingStrategy выбирает routing key для сообщения.
//
// Route может вернуть любое целое, включая отрицательные:
// System.SelectRoutingKey берёт его по модулю числа ключей.
type RoutingStrategy interface {
	Route(msg any) int
}

// RoutingFunc — адаптер функции к RoutingStrategy.
type RoutingFunc func(msg any) int

// Route вызывает f(msg).
func (f RoutingFunc) Route(msg any) int {
	return f(msg)
}

// RandomRouting выбирает равномерно случайный индекс из [0, n).
// Стратегия по умолчанию.
func RandomRouting(r Rand, n int) RoutingStrategy {
	return RoutingFunc(func(any) int {
		return r.IntN(n)
	})
}

// HashRouting направляет сообщения с одинаковым ключом в один routing key
// (а значит, в одну очередь). Ключ извлекается функцией key и
// хешируется blake2b.
func HashRouting(key func(msg any) string) RoutingStrategy {
	return RoutingFunc(func(msg any) int {
		return int(hashKey(key(msg)) >> 1)
	})
}

func hashKey(key string) uint64 {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(key))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
