package generate

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/logging"
)

// PortraitInput contains parameters for GeneratePortrait.
type PortraitInput struct {
	Name        string
	Designation string
	Company     string
	Main        creation.Image   // required
	Style       creation.Style   // default: professional
	Auxiliary   []creation.Image // optional, at most MaxImages-1
}

// Service generates poems and portraits through a Provider. It keeps no
// state between calls and never retries.
type Service struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewService wraps provider. A timeout of zero leaves calls bounded only by
// the caller's context.
func NewService(provider Provider, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		provider: provider,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("generate"),
	}
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "", config.ProviderDemo:
		return NewDemoProvider(DemoOptions{
			BaseDelay:     time.Duration(cfg.DemoBaseDelayMS) * time.Millisecond,
			PerImageDelay: time.Duration(cfg.DemoPerImageDelayMS) * time.Millisecond,
		}), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			TextModel:  cfg.OpenAITextModel,
			ImageModel: cfg.OpenAIImageModel,
		})
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.GeminiImageModel,
		})
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// ProviderName returns the name of the wrapped provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GeneratePoem returns a short personalized poem, trimmed.
func (s *Service) GeneratePoem(ctx context.Context, name, designation, company string) (string, error) {
	subject := Subject{Name: name, Designation: designation, Company: company}
	if err := checkSubject(subject, true); err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.provider.GenerateText(ctx, TextRequest{
		System:    PoemSystemPrompt,
		Prompt:    PoemPrompt(subject),
		MaxTokens: PoemMaxTokens,
		Subject:   subject,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty poem in response")
	}
	if err != nil {
		err = s.classify(err)
		s.logger.Warn("poem generation failed",
			zap.String("provider", s.provider.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", string(errors.CodeOf(err))),
			zap.Bool("retryable", errors.Retryable(err)),
			zap.Error(err))
		return "", err
	}

	s.logger.Info("poem generated",
		zap.String("provider", s.provider.Name()),
		zap.Duration("duration", time.Since(start)))
	return strings.TrimSpace(text), nil
}

// rawImageProvider is implemented by providers that upload reference bytes
// rather than passing the data URI through.
type rawImageProvider interface {
	NeedsImageBytes() bool
}

// CheckImages rejects references the provider could not consume. Index 0 is
// the main image. Payloads are decoded only for providers that need bytes.
func (s *Service) CheckImages(main creation.Image, aux []creation.Image) error {
	decode := false
	if p, ok := s.provider.(rawImageProvider); ok {
		decode = p.NeedsImageBytes()
	}
	check := func(i int, img creation.Image) error {
		var err error
		if decode {
			_, err = img.Decode()
		} else {
			err = img.Validate()
		}
		if err != nil {
			return errors.NewInvalidImage(i, err.(*errors.MuseError).Message)
		}
		return nil
	}

	if err := check(0, main); err != nil {
		return err
	}
	if len(aux) > creation.MaxImages-1 {
		return errors.NewOverCapacity(creation.MaxImages)
	}
	for i, img := range aux {
		if err := check(i+1, img); err != nil {
			return err
		}
	}
	return nil
}

// GeneratePortrait returns one image reference for in.Style. The references
// go through CheckImages before the provider is called.
func (s *Service) GeneratePortrait(ctx context.Context, in PortraitInput) (string, error) {
	subject := Subject{Name: in.Name, Designation: in.Designation, Company: in.Company}
	if err := checkSubject(subject, false); err != nil {
		return "", err
	}
	if err := s.CheckImages(in.Main, in.Auxiliary); err != nil {
		return "", err
	}

	style := in.Style
	if !style.Valid() {
		style = creation.DefaultStyle
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := ImageRequest{
		Prompt:    PortraitPrompt(subject, style, len(in.Auxiliary)),
		Style:     style,
		Main:      in.Main,
		Auxiliary: append([]creation.Image(nil), in.Auxiliary...),
		Subject:   subject,
	}

	start := time.Now()
	ref, err := s.provider.GenerateImage(ctx, req)
	if err == nil && strings.TrimSpace(ref) == "" {
		err = fmt.Errorf("empty image reference in response")
	}
	if err != nil {
		err = s.classify(err)
		s.logger.Warn("portrait generation failed",
			zap.String("provider", s.provider.Name()),
			zap.String("style", string(style)),
			zap.Int("references", req.ReferenceCount()),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", string(errors.CodeOf(err))),
			zap.Bool("retryable", errors.Retryable(err)),
			zap.Error(err))
		return "", err
	}

	s.logger.Info("portrait generated",
		zap.String("provider", s.provider.Name()),
		zap.String("style", string(style)),
		zap.Int("references", req.ReferenceCount()),
		zap.Duration("duration", time.Since(start)))
	return strings.TrimSpace(ref), nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps a provider failure to a MuseError kind. Errors that are
// already MuseErrors pass through unchanged.
func (s *Service) classify(err error) error {
	name := s.provider.Name()

	var mErr *errors.MuseError
	if stderrors.As(err, &mErr) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewProviderTimeout(name, err)
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.NewCancelled("generation")
	}

	var sErr *StatusError
	if stderrors.As(err, &sErr) {
		switch sErr.StatusCode {
		case 401, 403:
			return errors.NewProviderAuth(name, err)
		case 408, 504:
			return errors.NewProviderTimeout(name, err)
		}
	}
	return errors.NewProvider(name, err)
}

func checkSubject(s Subject, needCompany bool) error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Designation) == "" {
		missing = append(missing, "designation")
	}
	if needCompany && strings.TrimSpace(s.Company) == "" {
		missing = append(missing, "company")
	}
	if len(missing) > 0 {
		return errors.NewMissingInput("missing " + strings.Join(missing, ", "))
	}
	return nil
}
