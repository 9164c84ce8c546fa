package tinygo

import "context"

// await runs fn on its own goroutine, and returns its result or the
// error of ctx, whichever comes first. If ctx wins, abandon is called
// with the late result.
func await[T any](ctx context.Context, fn func() (T, error), abandon func(T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err

	case <-ctx.Done():
		if abandon != nil {
			go func() {
				r := <-ch
				abandon(r.value, r.err)
			}()
		}

		var zero T
		return zero, ctx.Err()
	}
}
