// Package jitter считает задержки между повторными попытками: экспоненциальный рост
// с потолком и случайной добавкой, чтобы клиенты не повторяли запросы синхронно.
package jitter

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultJitter: доля случайной добавки по умолчанию (до +50%).
const DefaultJitter = 0.5

// Backoff: политика задержек между попытками.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration // 0: без потолка
	Factor float64       // доля случайной добавки, 0: без джиттера
}

// NewBackoff возвращает политику с джиттером DefaultJitter.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, Factor: DefaultJitter}
}

// Delay возвращает задержку после неудачной попытки attempt (нумерация с нуля):
// Base*2^attempt, не больше Max, плюс до Factor от этой величины.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}

	return Duration(d, b.Factor)
}

// Duration возвращает d со случайной добавкой в диапазоне [0, d*factor).
func Duration(d time.Duration, factor float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}

// Sleep ждёт d или отмены ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
