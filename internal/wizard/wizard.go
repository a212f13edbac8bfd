// Package wizard holds the state machine behind the Details, Capture and
// Result steps: the profile, the reference images, the current Result, and
// the single-flight guard around generation.
package wizard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/generate"
	"github.com/hpungsan/muse/internal/logging"
	"github.com/hpungsan/muse/internal/ops"
)

// Step is a wizard page.
type Step string

const (
	StepDetails Step = "details"
	StepCapture Step = "capture"
	StepResult  Step = "result"
)

// Generator produces the poem and the portrait.
type Generator interface {
	GeneratePoem(ctx context.Context, name, designation, company string) (string, error)
	GeneratePortrait(ctx context.Context, in generate.PortraitInput) (string, error)
}

// imageChecker is implemented by generators that can reject references
// before any provider call is made.
type imageChecker interface {
	CheckImages(main creation.Image, aux []creation.Image) error
}

// Store persists results.
type Store interface {
	Append(ctx context.Context, r *creation.Result) error
	UpdateByID(ctx context.Context, id string, patch creation.Patch) (*creation.Result, error)
}

// User-facing notice texts.
const (
	msgGenerated        = "Your personalized poem and portrait have been generated!"
	msgPoemRegenerated  = "Generated a new personalized poem!"
	msgImageRegenerated = "Generated a new %s portrait!"
	msgMissingData      = "Missing data. Please complete all steps."
	msgMissingPoem      = "Missing data. Cannot regenerate poem."
	msgMissingImage     = "Missing data. Cannot regenerate image."
	msgGenerateFailed   = "Failed to generate content. Please check your API key and try again."
	msgPoemFailed       = "Failed to generate new poem. Please try again."
	msgImageFailed      = "Failed to generate new image. Please try again."
	msgEmailSent        = "Email would be sent to %s with your creation!"
	msgEmailSimulated   = "This is a simulation - no actual email is sent in this demo."
)

// Controller is one wizard instance. It is safe for concurrent use; at most
// one generation-triggering operation runs at a time.
//
// Provider calls run without the lock held. Reset during a call bumps the
// epoch, and the late completion is dropped with SUPERSEDED.
type Controller struct {
	gen    Generator
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() (string, error)

	mu          sync.Mutex
	step        Step
	profile     *creation.Profile
	images      creation.Images
	result      *creation.Result
	fieldErrors map[string]string
	processing  bool
	epoch       uint64
	notices     []Notice
}

// New returns a controller on the Details step.
func New(gen Generator, store Store, logger *zap.Logger) *Controller {
	return &Controller{
		gen:    gen,
		store:  store,
		logger: logging.OrNop(logger).Named("wizard"),
		now:    time.Now,
		newID:  ops.NewResultID,
		step:   StepDetails,
	}
}

// SubmitDetails validates p and moves Details -> Capture. Field problems are
// kept for the form and returned as VALIDATION_ERROR.
func (c *Controller) SubmitDetails(p creation.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return errors.NewBusy()
	}
	if c.step != StepDetails {
		return errors.NewInvalidRequest(fmt.Sprintf("details cannot be submitted on the %s step", c.step))
	}

	p = p.Normalize()
	if fields := p.FieldErrors(); len(fields) > 0 {
		c.fieldErrors = fields
		return errors.NewValidation(fields)
	}

	c.profile = &p
	c.fieldErrors = nil
	c.step = StepCapture
	return nil
}

// Back returns from Capture to Details, keeping the profile for the form.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return errors.NewBusy()
	}
	if c.step != StepCapture {
		return errors.NewInvalidRequest(fmt.Sprintf("cannot go back from the %s step", c.step))
	}
	c.step = StepDetails
	return nil
}

// SetImages replaces the reference images. The step never changes.
func (c *Controller) SetImages(imgs creation.Images) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkImagesMutable(); err != nil {
		return err
	}
	if err := imgs.Validate(); err != nil {
		return err
	}
	c.images = imgs.Clone()
	return nil
}

// AddImage appends one reference image. A 4th image fails with
// OVER_CAPACITY and leaves the sequence unchanged.
func (c *Controller) AddImage(img creation.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkImagesMutable(); err != nil {
		return err
	}
	next, err := c.images.Add(img)
	if err != nil {
		return err
	}
	c.images = next
	return nil
}

// RemoveImage drops the image at index i; later images shift down.
func (c *Controller) RemoveImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkImagesMutable(); err != nil {
		return err
	}
	next, err := c.images.Remove(i)
	if err != nil {
		return err
	}
	c.images = next
	return nil
}

// checkImagesMutable requires c.mu held.
func (c *Controller) checkImagesMutable() error {
	if c.processing {
		return errors.NewInvalidRequest("images cannot change while a generation is in progress")
	}
	if c.result != nil {
		return errors.NewInvalidRequest("images cannot change once a result exists; reset to start over")
	}
	return nil
}

// Generate creates the first Result. Poem and portrait are requested
// concurrently and both must succeed; on any failure nothing is stored and
// the step stays where it was. An empty or unknown style means professional.
func (c *Controller) Generate(ctx context.Context, style string) (*creation.Result, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil, errors.NewBusy()
	}
	if c.result != nil {
		c.mu.Unlock()
		return nil, errors.NewInvalidRequest("a result already exists; regenerate or reset")
	}
	if c.profile == nil || len(c.images) == 0 {
		c.notify(NoticeError, msgMissingData)
		c.mu.Unlock()
		return nil, errors.NewMissingInput("a profile and at least one image are required")
	}
	if c.step != StepCapture {
		c.mu.Unlock()
		return nil, errors.NewInvalidRequest(fmt.Sprintf("generate requires the %s step, not %s", StepCapture, c.step))
	}
	if err := c.images.Validate(); err != nil {
		c.notify(NoticeError, failureMessage(err, msgMissingData))
		c.mu.Unlock()
		return nil, err
	}
	if chk, ok := c.gen.(imageChecker); ok {
		if err := chk.CheckImages(c.images.Main(), c.images.Auxiliary()); err != nil {
			c.notify(NoticeError, failureMessage(err, msgMissingData))
			c.mu.Unlock()
			return nil, err
		}
	}

	profile := *c.profile
	images := c.images.Clone()
	s := creation.ParseStyle(style)
	epoch := c.begin()
	c.mu.Unlock()

	start := time.Now()
	var poem, portrait string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		poem, err = c.gen.GeneratePoem(gctx, profile.Name, profile.Designation, profile.Company)
		return err
	})
	g.Go(func() error {
		var err error
		portrait, err = c.gen.GeneratePortrait(gctx, generate.PortraitInput{
			Name:        profile.Name,
			Designation: profile.Designation,
			Company:     profile.Company,
			Main:        images.Main(),
			Style:       s,
			Auxiliary:   images.Auxiliary(),
		})
		return err
	})
	genErr := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.logger.Info("discarding generation completed after reset", zap.Duration("duration", time.Since(start)))
		return nil, errors.NewSuperseded("generate")
	}
	c.processing = false

	if genErr != nil {
		c.notify(NoticeError, failureMessage(genErr, msgGenerateFailed))
		c.logger.Warn("generation failed",
			zap.String("style", string(s)),
			zap.Int("references", len(images)),
			zap.String("code", string(errors.CodeOf(genErr))),
			zap.Error(genErr))
		return nil, genErr
	}

	id, err := c.newID()
	if err != nil {
		c.notify(NoticeError, msgGenerateFailed)
		return nil, errors.NewInternal(err)
	}
	now := c.now().Unix()
	r := &creation.Result{
		ID:             id,
		Poem:           poem,
		PortraitURL:    portrait,
		PortraitStyle:  s,
		Name:           profile.Name,
		Designation:    profile.Designation,
		Company:        profile.Company,
		ReferenceCount: len(images),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.store.Append(ctx, r); err != nil {
		c.notify(NoticeError, msgGenerateFailed)
		c.logger.Error("failed to persist result", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	c.result = r
	c.step = StepResult
	c.notify(NoticeSuccess, msgGenerated)
	c.logger.Info("result generated",
		zap.String("id", id),
		zap.String("style", string(s)),
		zap.Int("references", len(images)),
		zap.Duration("duration", time.Since(start)))

	out := *r
	return &out, nil
}

// RegeneratePoem replaces the poem of the current Result. On failure the
// Result is left as it was.
func (c *Controller) RegeneratePoem(ctx context.Context) (*creation.Result, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil, errors.NewBusy()
	}
	if c.result == nil || c.profile == nil {
		c.notify(NoticeError, msgMissingPoem)
		c.mu.Unlock()
		return nil, errors.NewMissingInput("no result to regenerate")
	}
	profile := *c.profile
	id := c.result.ID
	epoch := c.begin()
	c.mu.Unlock()

	poem, err := c.gen.GeneratePoem(ctx, profile.Name, profile.Designation, profile.Company)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, epoch, id, "regenerate poem", err, creation.Patch{Poem: &poem},
		msgPoemRegenerated, msgPoemFailed)
}

// RegenerateImage replaces the portrait of the current Result. style wins
// when given; otherwise the Result's current style is reused.
func (c *Controller) RegenerateImage(ctx context.Context, style string) (*creation.Result, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil, errors.NewBusy()
	}
	if c.result == nil || c.profile == nil || len(c.images) == 0 {
		c.notify(NoticeError, msgMissingImage)
		c.mu.Unlock()
		return nil, errors.NewMissingInput("no result or images to regenerate from")
	}

	s := c.result.PortraitStyle
	if strings.TrimSpace(style) != "" || !s.Valid() {
		s = creation.ParseStyle(style)
	}
	profile := *c.profile
	images := c.images.Clone()
	id := c.result.ID
	epoch := c.begin()
	c.mu.Unlock()

	url, err := c.gen.GeneratePortrait(ctx, generate.PortraitInput{
		Name:        profile.Name,
		Designation: profile.Designation,
		Company:     profile.Company,
		Main:        images.Main(),
		Style:       s,
		Auxiliary:   images.Auxiliary(),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, epoch, id, "regenerate image", err,
		creation.Patch{PortraitURL: &url, PortraitStyle: &s},
		fmt.Sprintf(msgImageRegenerated, s), msgImageFailed)
}

// commit finishes a regeneration. Requires c.mu held.
func (c *Controller) commit(ctx context.Context, epoch uint64, id, op string, genErr error,
	patch creation.Patch, okMsg, failMsg string) (*creation.Result, error) {
	if c.epoch != epoch {
		c.logger.Info("discarding regeneration completed after reset", zap.String("op", op))
		return nil, errors.NewSuperseded(op)
	}
	c.processing = false

	if genErr != nil {
		c.notify(NoticeError, failureMessage(genErr, failMsg))
		c.logger.Warn("regeneration failed",
			zap.String("op", op),
			zap.String("id", id),
			zap.String("code", string(errors.CodeOf(genErr))),
			zap.Error(genErr))
		return nil, genErr
	}

	updated, err := c.store.UpdateByID(ctx, id, patch)
	if err != nil {
		c.notify(NoticeError, failMsg)
		c.logger.Error("failed to persist regeneration", zap.String("op", op), zap.String("id", id), zap.Error(err))
		return nil, err
	}

	c.result = updated
	c.notify(NoticeSuccess, okMsg)
	c.logger.Info("result regenerated", zap.String("op", op), zap.String("id", id))

	out := *updated
	return &out, nil
}

// Reset discards the profile, the images and the Result and returns to
// Details. Stored results are kept. A generation still in flight is
// superseded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		c.logger.Info("reset during generation")
	}
	c.epoch++
	c.processing = false
	c.step = StepDetails
	c.profile = nil
	c.images = nil
	c.result = nil
	c.fieldErrors = nil
}

// SendEmail simulates mailing the Result to the profile's address and
// returns the recipient. Nothing is delivered.
func (c *Controller) SendEmail() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.profile == nil || c.result == nil {
		return "", errors.NewMissingInput("no result to send")
	}
	to := c.profile.Email
	c.notify(NoticeSuccess, fmt.Sprintf(msgEmailSent, to))
	c.notify(NoticeInfo, msgEmailSimulated)
	c.logger.Info("simulated email", zap.String("result_id", c.result.ID))
	return to, nil
}

// begin marks a generation in flight and returns its epoch. Requires c.mu held.
func (c *Controller) begin() uint64 {
	c.processing = true
	return c.epoch
}

// failureMessage picks the notice for a failed generation: input problems
// are reported as such, everything else gets the generic retry text.
func failureMessage(err error, generic string) string {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidImage, errors.ErrOverCapacity, errors.ErrMissingInput:
		var mErr *errors.MuseError
		if stderrors.As(err, &mErr) {
			return mErr.Message
		}
	}
	return generic
}
