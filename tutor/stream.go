package tutor

import (
	"context"
	"strings"
)

// Accumulate forwards fragments from in and calls onDone with the full text
// once in is exhausted, before the returned channel is closed. When ctx is
// done the remaining fragments are still collected but no longer forwarded,
// so a consumer that goes away does not lose the answer.
func Accumulate(ctx context.Context, in <-chan string, onDone func(full string)) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		var full strings.Builder
		forward := true
		for fragment := range in {
			full.WriteString(fragment)
			if !forward {
				continue
			}
			select {
			case out <- fragment:
			case <-ctx.Done():
				forward = false
			}
		}
		onDone(full.String())
	}()

	return out
}
