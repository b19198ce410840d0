package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/healthharmony/assistant/internal/application/orchestration"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// FrontendHandlers renders the HTMX page and its fragments
type FrontendHandlers struct {
	templates     *template.Template
	profiles      inbound.ProfileService
	flows         inbound.FlowService
	suggester     Suggester
	checks        Checker
	validateOnAdd bool
	maxPhotoBytes int
	logger        *zap.Logger
}

// FrontendOptions tunes the page behaviour
type FrontendOptions struct {
	ValidateOnAdd bool
	MaxPhotoBytes int
}

// NewFrontendHandlers creates a new frontend handlers instance
func NewFrontendHandlers(
	templates *template.Template,
	profiles inbound.ProfileService,
	flows inbound.FlowService,
	suggester Suggester,
	checks Checker,
	opts FrontendOptions,
	logger *zap.Logger,
) *FrontendHandlers {
	return &FrontendHandlers{
		templates:     templates,
		profiles:      profiles,
		flows:         flows,
		suggester:     suggester,
		checks:        checks,
		validateOnAdd: opts.ValidateOnAdd,
		maxPhotoBytes: opts.MaxPhotoBytes,
		logger:        logger.Named("frontend"),
	}
}

// CategoryView is one tag list on the page
type CategoryView struct {
	Category  profile.Category
	Title     string
	EmptyText string
	Items     []string
}

// PageData represents the index page
type PageData struct {
	Title         string
	Categories    []ListData
	Check         orchestration.CheckState
	Notices       []inbound.Notice
	Authenticated bool
	Persisted     bool
	MaxPhotos     int
}

// ListData is the fragment for a single tag list
type ListData struct {
	CategoryView
	Notices []inbound.Notice
}

// SuggestionsData is the autocomplete fragment
type SuggestionsData struct {
	Category    profile.Category
	Suggestions []string
}

// Index handles GET /
func (h *FrontendHandlers) Index(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	snapshot := h.profiles.Get(r.Context(), owner)

	h.render(w, "index", PageData{
		Title:         "Health Harmony",
		Categories:    categoryViews(snapshot),
		Check:         h.checks.Current(owner),
		Notices:       h.profiles.Notices(owner),
		Authenticated: owner.Authenticated(),
		Persisted:     owner.Authenticated() && h.profiles.RemoteEnabled(),
		MaxPhotos:     assessment.MaxPhotos,
	})
}

// AddItem handles POST /ui/profile/{category}
func (h *FrontendHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	category, err := profile.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.renderError(w, apperrors.NewNotFoundError("category"))
		return
	}

	owner := middleware.OwnerFromContext(r.Context())
	validate := h.validateOnAdd
	if v := r.FormValue("validate"); v != "" {
		validate = v == "true" || v == "on"
	}

	result, err := h.profiles.Add(r.Context(), inbound.AddItemCommand{
		Owner:    owner,
		Category: category,
		Item:     r.FormValue("item"),
		Validate: validate,
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidationFailed {
			h.renderList(w, category, h.profiles.Get(r.Context(), owner), []inbound.Notice{{
				Kind:     inbound.NoticeRejected,
				Message:  appErr.Details,
				Category: category,
			}})
			return
		}
		h.renderError(w, err)
		return
	}

	var notices []inbound.Notice
	if result.Notice != nil {
		notices = append(notices, *result.Notice)
	}
	h.renderList(w, category, result.Profile, notices)
}

// RemoveItem handles DELETE /ui/profile/{category}?item=
func (h *FrontendHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	category, err := profile.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.renderError(w, apperrors.NewNotFoundError("category"))
		return
	}

	snapshot, err := h.profiles.Remove(r.Context(), inbound.RemoveItemCommand{
		Owner:    middleware.OwnerFromContext(r.Context()),
		Category: category,
		Item:     r.URL.Query().Get("item"),
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderList(w, category, snapshot, nil)
}

// Suggestions handles GET /ui/suggestions?category=&q=; the add form's
// item field is accepted in place of q. A superseded
// request answers 204 so htmx leaves the list alone.
func (h *FrontendHandlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	category, err := profile.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("item")
	}

	result, err := h.suggester.Suggest(r.Context(), middleware.OwnerFromContext(r.Context()), inbound.SuggestionsQuery{
		Category: category,
		Query:    strings.TrimSpace(query),
	})
	if errors.Is(err, orchestration.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		// autocomplete failures stay silent
		h.logger.Debug("Suggestions failed", zap.Error(err))
		result = &assessment.SuggestionsResult{}
	}
	h.render(w, "suggestions", SuggestionsData{Category: category, Suggestions: result.Suggestions})
}

// Check handles POST /ui/checks with a multipart form of itemName and up to
// five photos
func (h *FrontendHandlers) Check(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	photos, err := h.readPhotos(r)
	if err != nil {
		h.render(w, "check_panel", orchestration.CheckState{
			Status:    orchestration.CheckFailed,
			Error:     err.Error(),
			ErrorCode: apperrors.CodeValidationFailed,
		})
		return
	}

	state, err := h.checks.Run(r.Context(), owner, inbound.CompatibilityCommand{
		Profile:  h.profiles.Get(r.Context(), owner),
		ItemName: r.FormValue("itemName"),
		Photos:   photos,
	})
	if errors.Is(err, orchestration.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidationFailed {
		state = orchestration.CheckState{Status: orchestration.CheckFailed, Error: appErr.Details, ErrorCode: appErr.Code}
	}
	h.render(w, "check_panel", state)
}

// Alternatives handles POST /ui/checks/alternatives
func (h *FrontendHandlers) Alternatives(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.followUp(w, r)
	if !ok {
		return
	}
	result, err := h.flows.SuggestAlternatives(r.Context(), cmd)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, "alternatives", result)
}

// Advice handles POST /ui/checks/advice
func (h *FrontendHandlers) Advice(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.followUp(w, r)
	if !ok {
		return
	}
	result, err := h.flows.GetPostIngestionAdvice(r.Context(), cmd)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, "advice", result)
}

// Tips handles POST /ui/tips
func (h *FrontendHandlers) Tips(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	result, err := h.flows.GetLifestyleTips(r.Context(), inbound.TipsQuery{Profile: h.profiles.Get(r.Context(), owner)})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, "tips", result)
}

// Notifications handles GET /ui/notifications, polled for background
// persistence notices
func (h *FrontendHandlers) Notifications(w http.ResponseWriter, r *http.Request) {
	notices := h.profiles.Notices(middleware.OwnerFromContext(r.Context()))
	if len(notices) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.render(w, "toasts", notices)
}

func (h *FrontendHandlers) followUp(w http.ResponseWriter, r *http.Request) (inbound.ItemCommand, bool) {
	owner := middleware.OwnerFromContext(r.Context())
	state := h.checks.Current(owner)
	if !state.FollowUp || state.ItemName == "" {
		h.renderError(w, apperrors.NewAppError(apperrors.CodeConflict, "No follow-up is available for the current result", ""))
		return inbound.ItemCommand{}, false
	}
	return inbound.ItemCommand{Profile: h.profiles.Get(r.Context(), owner), ItemName: state.ItemName}, true
}

// readPhotos converts the uploaded files into data URIs
func (h *FrontendHandlers) readPhotos(r *http.Request) ([]string, error) {
	limit := int64(h.maxPhotoBytes)*assessment.MaxPhotos + 1<<20
	if err := r.ParseMultipartForm(limit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.New("the upload could not be read")
	}
	if r.MultipartForm == nil {
		return nil, nil
	}

	files := r.MultipartForm.File["photos"]
	if len(files) > assessment.MaxPhotos {
		return nil, assessment.ErrTooManyPhotos
	}

	uris := make([]string, 0, len(files))
	for _, fh := range files {
		uri, err := h.photoDataURI(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (h *FrontendHandlers) photoDataURI(fh *multipart.FileHeader) (string, error) {
	if h.maxPhotoBytes > 0 && fh.Size > int64(h.maxPhotoBytes) {
		return "", assessment.ErrPhotoTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", assessment.ErrUnsupportedMedia
	}
	return assessment.Photo{MIMEType: mimeType, Data: data}.DataURI(), nil
}

func (h *FrontendHandlers) renderList(w http.ResponseWriter, c profile.Category, snapshot profile.Snapshot, notices []inbound.Notice) {
	h.render(w, "category_list", ListData{CategoryView: categoryView(c, snapshot), Notices: notices})
}

func (h *FrontendHandlers) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// renderError shows the public message of err in the page's error slot
func (h *FrontendHandlers) renderError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("Fragment request failed", zap.String("code", string(appErr.Code)), zap.Error(err))
	}
	w.Header().Set("HX-Retarget", "#errors")
	w.Header().Set("HX-Reswap", "innerHTML")
	h.render(w, "error", appErr.PublicMessage())
}

func categoryViews(snapshot profile.Snapshot) []ListData {
	views := make([]ListData, 0, len(profile.Categories))
	for _, c := range profile.Categories {
		views = append(views, ListData{CategoryView: categoryView(c, snapshot)})
	}
	return views
}

func categoryView(c profile.Category, snapshot profile.Snapshot) CategoryView {
	return CategoryView{
		Category:  c,
		Title:     c.Title(),
		EmptyText: c.EmptyText(),
		Items:     snapshot.Items(c),
	}
}
