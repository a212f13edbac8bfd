package generate

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/hpungsan/muse/internal/creation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const testImage = creation.Image("data:image/png;base64,AAA")

// fakeProvider records requests and answers from its func fields.
type fakeProvider struct {
	text  func(ctx context.Context, req TextRequest) (string, error)
	image func(ctx context.Context, req ImageRequest) (string, error)

	mu        sync.Mutex
	textReqs  []TextRequest
	imageReqs []ImageRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	f.mu.Lock()
	f.textReqs = append(f.textReqs, req)
	f.mu.Unlock()
	if f.text == nil {
		return "line one\nline two\nline three\nline four", nil
	}
	return f.text(ctx, req)
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	f.mu.Unlock()
	if f.image == nil {
		return "https://img.example/" + string(req.Style) + ".png", nil
	}
	return f.image(ctx, req)
}

func (f *fakeProvider) calls() (text, image int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.textReqs), len(f.imageReqs)
}

func (f *fakeProvider) lastImage() ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageReqs[len(f.imageReqs)-1]
}
