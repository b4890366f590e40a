package capture

import (
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/model"
)

// Feedback signals a successful save to the user (haptics, sound, a toast).
type Feedback interface {
	Success(t model.MemoryType)
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(t model.MemoryType)

// Success calls f.
func (f FeedbackFunc) Success(t model.MemoryType) { f(t) }

// celebrate fires feedback in its own goroutine. A panicking or slow
// implementation never affects the save result.
func (o *Orchestrator) celebrate(t model.MemoryType) {
	if o.feedback == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.Warn("feedback panicked", zap.Any("panic", r))
			}
		}()
		o.feedback.Success(t)
	}()
}
