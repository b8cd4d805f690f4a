package notifier

import (
	"fmt"
	"time"
)

// ThrottleError возвращается доставщиком, когда приемник вебхуков просит
// замедлиться (HTTP 429 + Retry-After). Ретраер учитывает подсказку вместо
// стандартного бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}
