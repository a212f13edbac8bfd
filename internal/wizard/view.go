package wizard

import (
	"maps"

	"github.com/hpungsan/muse/internal/creation"
)

// NoticeLevel classifies a Notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// View is a snapshot of the controller for rendering. It shares no memory
// with the controller.
type View struct {
	Step        Step              `json:"step"`
	Processing  bool              `json:"processing"`
	Profile     *creation.Profile `json:"profile,omitempty"`
	Images      creation.Images   `json:"images,omitempty"`
	Result      *creation.Result  `json:"result,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// CanAddImage reports whether another reference image fits.
func (v View) CanAddImage() bool {
	return !v.Processing && v.Result == nil && len(v.Images) < creation.MaxImages
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Step:        c.step,
		Processing:  c.processing,
		Images:      c.images.Clone(),
		FieldErrors: maps.Clone(c.fieldErrors),
	}
	if c.profile != nil {
		p := *c.profile
		v.Profile = &p
	}
	if c.result != nil {
		r := *c.result
		v.Result = &r
	}
	return v
}

// TakeNotices returns and clears the pending notices, oldest first.
func (c *Controller) TakeNotices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.notices
	c.notices = nil
	return out
}

// HasNotices reports whether notices are waiting to be taken.
func (c *Controller) HasNotices() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notices) > 0
}

// notify queues a notice. Requires c.mu held.
func (c *Controller) notify(level NoticeLevel, msg string) {
	c.notices = append(c.notices, Notice{Level: level, Message: msg})
}
