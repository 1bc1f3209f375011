package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vizbase/internal/artifactservice"
	"github.com/starford/vizbase/internal/capture"
	"github.com/starford/vizbase/internal/compare"
	"github.com/starford/vizbase/internal/index"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/verify"
)

// Handler holds API route handlers.
type Handler struct {
	svc *artifactservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *artifactservice.Service) *Handler {
	return &Handler{svc: svc}
}

func artifactKey(r *http.Request) (models.ArtifactKey, error) {
	return models.NewKey(chi.URLParam(r, "group"), chi.URLParam(r, "name"))
}

// Verify handles POST /api/verify/{group}/{name}.
//
//	@Summary		Compare an uploaded PNG with the stored baseline
//	@Description	The first upload for a key becomes its baseline.
//	@Tags			verify
//	@Accept			png,mpfd
//	@Produce		json
//	@Param			group		path		string	true	"Baseline group"
//	@Param			name		path		string	true	"Baseline name"
//	@Param			threshold	query		number	false	"Differing-pixel ratio that still matches"
//	@Success		200			{object}	VerificationResponse
//	@Failure		400			{object}	errResponse
//	@Failure		413			{object}	errResponse
//	@Failure		415			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/verify/{group}/{name} [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	key, err := artifactKey(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var opts []verify.Option
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		th, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			err = compare.ValidateThreshold(th)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("threshold must be a number in [0,1]"))
			return
		}
		opts = append(opts, verify.WithThreshold(th))
	}

	data, err := readImage(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	if ct := http.DetectContentType(data); ct != "image/png" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("body must be a PNG image, got "+ct))
		return
	}

	v, err := h.svc.Verify(r.Context(), key, capture.Bytes(data), opts...)
	if err != nil {
		writeError(w, "verify", err, slog.String("key", key.String()))
		return
	}

	resp := VerificationResponse{Verification: *v}
	if !v.Matched {
		resp.DiffURL = "/api/diffs/" + url.PathEscape(key.Group) + "/" + url.PathEscape(key.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListBaselines handles GET /api/baselines.
//
//	@Summary		List baselines
//	@Tags			baselines
//	@Produce		json
//	@Param			group	query		string	false	"Only this group"
//	@Success		200		{object}	BaselineListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/baselines [get]
func (h *Handler) ListBaselines(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	items, err := h.svc.ListBaselines(r.Context(), group)
	if err != nil {
		writeError(w, "list baselines", err, slog.String("group", group))
		return
	}
	if items == nil {
		items = []models.BaselineMetadata{}
	}
	writeJSON(w, http.StatusOK, BaselineListResponse{Baselines: items, Total: len(items)})
}

// GetBaseline handles GET /api/baselines/{group}/{name}.
//
//	@Summary		Download a baseline image
//	@Tags			baselines
//	@Produce		png
//	@Param			group	path	string	true	"Baseline group"
//	@Param			name	path	string	true	"Baseline name"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/baselines/{group}/{name} [get]
func (h *Handler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	key, err := artifactKey(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := h.svc.Baseline(r.Context(), key)
	if err != nil {
		writeError(w, "get baseline", err, slog.String("key", key.String()))
		return
	}
	writePNG(w, data)
}

// GetDiff handles GET /api/diffs/{group}/{name}.
//
//	@Summary		Download the failure evidence for a baseline
//	@Description	X-Evidence-Kind is "diff" for a rendered diff and "current" for a capture kept after a size change.
//	@Tags			diffs
//	@Produce		png
//	@Param			group	path	string	true	"Baseline group"
//	@Param			name	path	string	true	"Baseline name"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/diffs/{group}/{name} [get]
func (h *Handler) GetDiff(w http.ResponseWriter, r *http.Request) {
	key, err := artifactKey(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ev, err := h.svc.Diff(r.Context(), key)
	if err != nil {
		writeError(w, "get diff", err, slog.String("key", key.String()))
		return
	}
	w.Header().Set("X-Evidence-Kind", ev.Kind)
	writePNG(w, ev.Data)
}

// ListVerifications handles GET /api/verifications.
//
//	@Summary		Verification history, newest first
//	@Tags			verify
//	@Produce		json
//	@Param			group	query		string	false	"Filter by group"
//	@Param			name	query		string	false	"Filter by name"
//	@Param			failed	query		bool	false	"Only failed runs"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	VerificationListResponse
//	@Security		BearerAuth
//	@Router			/verifications [get]
func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	failed, _ := strconv.ParseBool(q.Get("failed"))

	items, err := h.svc.History(r.Context(), index.VerificationFilter{
		Group:      q.Get("group"),
		Name:       q.Get("name"),
		FailedOnly: failed,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, "list verifications", err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationListResponse{Verifications: items})
}
