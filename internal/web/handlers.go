package web

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/ops"
	"github.com/hpungsan/muse/internal/wizard"
)

const (
	maxUploadBody      = 64 << 20
	maxMultipartMemory = 32 << 20
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	ctrl     *wizard.Controller
	logger   *zap.Logger
	renderer *Renderer
}

// HandleWizard handles GET /wizard, rendering the page for the current step.
func (h *Handlers) HandleWizard(w http.ResponseWriter, r *http.Request) {
	v := h.ctrl.View()
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, v)
		return
	}
	h.renderWizard(w, r, http.StatusOK, v, creation.Profile{})
}

// HandleDetails handles POST /wizard/details.
func (h *Handlers) HandleDetails(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	form := creation.Profile{
		Name:        r.FormValue("name"),
		Designation: r.FormValue("designation"),
		Company:     r.FormValue("company"),
		Email:       r.FormValue("email"),
	}

	err := h.ctrl.SubmitDetails(form)
	if errors.Is(err, errors.ErrValidation) && !wantsJSON(r) {
		// Re-render the form with what was typed and the field messages
		h.renderWizard(w, r, http.StatusUnprocessableEntity, h.ctrl.View(), form)
		return
	}
	h.respond(w, r, err)
}

// HandleBack handles POST /wizard/back.
func (h *Handlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.ctrl.Back())
}

// HandleAddImage handles POST /wizard/images. It accepts an uploaded file
// ("image") or a captured data URI ("data_uri").
func (h *Handlers) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxImageBytes
	bodyLimit := int64(maxUploadBody)
	if maxBytes > 0 {
		// Room for multipart framing and a base64 data URI of a full-size image
		bodyLimit = maxBytes*2 + 1<<20
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	if err := parseForm(r); err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			h.respond(w, r, creation.ErrImageTooLarge(maxBytes))
			return
		}
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if dataURI := strings.TrimSpace(r.FormValue("data_uri")); dataURI != "" {
		h.respond(w, r, h.ctrl.AddImage(creation.Image(dataURI)))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("an image file or data URI is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("failed to read upload"))
		return
	}
	img, err := creation.ImageFromBytes(data, maxBytes)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	h.respond(w, r, h.ctrl.AddImage(img))
}

// HandleRemoveImage handles POST /wizard/images/{index}/delete.
func (h *Handlers) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("image index must be an integer"))
		return
	}
	h.respond(w, r, h.ctrl.RemoveImage(i))
}

// HandleGenerate handles POST /wizard/generate. The generation outlives a
// closed browser tab; the provider timeout still bounds it.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	_, err := h.ctrl.Generate(context.WithoutCancel(r.Context()), r.FormValue("style"))
	h.respond(w, r, err)
}

// HandleRegeneratePoem handles POST /wizard/regenerate/poem.
func (h *Handlers) HandleRegeneratePoem(w http.ResponseWriter, r *http.Request) {
	_, err := h.ctrl.RegeneratePoem(context.WithoutCancel(r.Context()))
	h.respond(w, r, err)
}

// HandleRegenerateImage handles POST /wizard/regenerate/image.
func (h *Handlers) HandleRegenerateImage(w http.ResponseWriter, r *http.Request) {
	_, err := h.ctrl.RegenerateImage(context.WithoutCancel(r.Context()), r.FormValue("style"))
	h.respond(w, r, err)
}

// HandleEmail handles POST /wizard/email.
func (h *Handlers) HandleEmail(w http.ResponseWriter, r *http.Request) {
	_, err := h.ctrl.SendEmail()
	h.respond(w, r, err)
}

// HandleReset handles POST /wizard/reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Reset()
	h.respond(w, r, nil)
}

// respond finishes a wizard action. Browsers are sent back to /wizard where
// the notices explain what happened; JSON clients get the view or the error.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.logger.Debug("wizard action failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(errors.CodeOf(err))))
	}

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"view":    h.ctrl.View(),
			"notices": h.ctrl.TakeNotices(),
		})
		return
	}

	// Failures the controller did not explain with a notice get an error page.
	// BUSY and SUPERSEDED just send the browser to the current state.
	if err != nil && !h.ctrl.HasNotices() &&
		!errors.Is(err, errors.ErrBusy) && !errors.Is(err, errors.ErrSuperseded) {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/wizard")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handlers) renderWizard(w http.ResponseWriter, r *http.Request, status int, v wizard.View, form creation.Profile) {
	page := string(v.Step)
	if v.Processing {
		page = "processing"
	}
	if form == (creation.Profile{}) && v.Profile != nil {
		form = *v.Profile
	}

	data := WizardPageData{
		PageData: PageData{
			Title:   "Muse",
			Version: h.renderer.version,
			Nav:     "wizard",
			Notices: h.ctrl.TakeNotices(),
		},
		View:      v,
		Form:      form,
		Styles:    styleOptions(creation.DefaultStyle),
		MaxImages: creation.MaxImages,
	}
	if v.Processing {
		data.Refresh = 2
	}
	if v.Result != nil {
		data.Styles = styleOptions(v.Result.PortraitStyle)
		data.PoemHTML = renderPoem(v.Result.Poem)
	}

	h.renderer.renderPageStatus(w, r, status, page, data)
}

// HandleHistory handles GET /history, listing stored results newest first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.db, ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleDetail handles GET /history/{id}, showing one stored result.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("result id is required"))
		return
	}

	result, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   result.Name,
			Version: h.renderer.version,
			Nav:     "history",
		},
		Result:   result,
		PoemHTML: renderPoem(result.Poem),
	})
}

// parseForm parses multipart and urlencoded bodies alike.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMultipartMemory)
	}
	return r.ParseForm()
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
