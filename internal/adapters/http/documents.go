package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := rt.documents.List(r.Context(), actorFromContext(r.Context()), domain.DocumentFilter{
		Kind:    domain.DocumentKind(q.Get("kind")),
		RefType: domain.ReferenceType(q.Get("reference_type")),
		RefID:   q.Get("reference_id"),
		Status:  domain.DocumentStatus(q.Get("status")),
		Search:  strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) createDocument(w http.ResponseWriter, r *http.Request) {
	const op = "create document"
	upload, err := rt.uploads.parse(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer upload.Close()

	input := domain.CreateDocumentInput{
		Name:         strings.TrimSpace(r.FormValue("name")),
		Kind:         domain.DocumentKind(r.FormValue("kind")),
		RefType:      domain.ReferenceType(r.FormValue("reference_type")),
		RefID:        strings.TrimSpace(r.FormValue("reference_id")),
		Description:  r.FormValue("description"),
		Confidential: formBool(r.FormValue("confidential")),
		Grantees:     splitIDs(r.Form["grantees"]),
		File:         upload.info,
	}
	if input.Tags, err = formTags(r.FormValue("tags")); err != nil {
		writeError(w, r, domain.Invalid(op, "tags must be a JSON array or a comma separated list"))
		return
	}
	for field, target := range map[string]*int{
		"version_major": &input.Major,
		"version_minor": &input.Minor,
		"version_patch": &input.Patch,
	} {
		if *target, err = formInt(r.FormValue(field)); err != nil {
			writeError(w, r, domain.Invalid(op, field+" must be an integer"))
			return
		}
	}

	doc, err := rt.documents.Create(r.Context(), actorFromContext(r.Context()), input, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.documents.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type metadataPatchRequest struct {
	Name         *string                `json:"name"`
	Description  *string                `json:"description"`
	Status       *domain.DocumentStatus `json:"status"`
	Tags         *[]string              `json:"tags"`
	Confidential *bool                  `json:"confidential"`
	Grantees     *[]string              `json:"grantees"`
	ValidatedBy  *string                `json:"validated_by"`
}

func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	var req metadataPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	doc, err := rt.documents.UpdateMetadata(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), domain.MetadataPatch{
		Name:         req.Name,
		Description:  req.Description,
		Status:       req.Status,
		Tags:         req.Tags,
		Confidential: req.Confidential,
		Grantees:     req.Grantees,
		ValidatedBy:  req.ValidatedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.documents.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := rt.documents.History(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (rt *Router) addVersion(w http.ResponseWriter, r *http.Request) {
	upload, err := rt.uploads.parse(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer upload.Close()

	doc, err := rt.documents.AddVersion(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), domain.NewVersionInput{
		Comment: strings.TrimSpace(r.FormValue("comment")),
		File:    upload.info,
	}, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	dl, err := rt.documents.Download(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	streamDownload(w, r, dl)
}

func (rt *Router) downloadVersion(w http.ResponseWriter, r *http.Request) {
	dl, err := rt.documents.DownloadVersion(
		r.Context(),
		actorFromContext(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "versionId"),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	streamDownload(w, r, dl)
}

func streamDownload(w http.ResponseWriter, r *http.Request, dl *domain.Download) {
	defer dl.Body.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	if dl.Version != "" {
		w.Header().Set("X-Document-Version", dl.Version)
	}
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		slog.Warn("download_stream_interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"filename", dl.Filename,
			"error", err,
		)
	}
}

func formBool(v string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && parsed
}

func formInt(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// formTags accepts either a JSON array or a comma separated list.
func formTags(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if strings.HasPrefix(v, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(v), &tags); err != nil {
			return nil, err
		}
		return tags, nil
	}
	return splitIDs([]string{v}), nil
}

// splitIDs flattens repeated and comma separated form values.
func splitIDs(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
