// Package closer закрывает ресурсы приложения в порядке, обратном подключению.
package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

const defaultForcedTimeout = 2 * time.Second

// Func: функция закрытия ресурса.
type Func func(ctx context.Context) error

type resource struct {
	name  string
	close Func
}

// Closer хранит зарегистрированные ресурсы и закрывает их один раз.
type Closer struct {
	mu            sync.Mutex
	resources     []resource
	once          sync.Once
	err           error
	forcedTimeout time.Duration
	logger        logger.Logger
}

// NewCloser создаёт Closer. forcedTimeout: время на принудительное закрытие ресурсов,
// до которых не дошла очередь к моменту отмены контекста Close.
func NewCloser(forcedTimeout time.Duration, logger logger.Logger) *Closer {
	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout, logger: logger}
}

// Add регистрирует ресурс под именем name.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = append(c.resources, resource{name: name, close: f})
}

// Close закрывает ресурсы последовательно в порядке LIFO. Если ctx отменён раньше,
// оставшиеся ресурсы закрываются параллельно с собственным таймаутом.
// Повторные вызовы возвращают результат первого.
func (c *Closer) Close(ctx context.Context) error {
	c.once.Do(func() {
		c.mu.Lock()
		resources := c.resources
		c.mu.Unlock()

		remaining, errs := c.closeInOrder(ctx, resources)
		if len(remaining) > 0 {
			c.logger.Warnf("shutdown deadline reached, forcing %d resource(s) to close", len(remaining))
			errs = append(errs, c.forceClose(remaining)...)
		}

		c.err = errors.Join(errs...)
	})

	return c.err
}

// closeInOrder возвращает ресурсы, до которых не дошла очередь из-за отмены ctx.
func (c *Closer) closeInOrder(ctx context.Context, resources []resource) ([]resource, []error) {
	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]
		done := make(chan error, 1)
		go func() {
			done <- res.close(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", res.name, err))
				continue
			}
			c.logger.Debugf("%s closed", res.name)
		case <-ctx.Done():
			// ресурс i ещё закрывается, повторно его не трогаем
			return resources[:i], append(errs, fmt.Errorf("%s: %w", res.name, ctx.Err()))
		}
	}

	return nil, errs
}

func (c *Closer) forceClose(resources []resource) []error {
	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, res := range resources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := res.close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s (forced): %w", res.name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errs
}
