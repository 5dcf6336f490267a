package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"student_registry/internal/metrics"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/registry"
	"student_registry/internal/service/xlsx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const (
	maxUploadSize = 10 << 20
	xlsxMime      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (h *Handler) log(r *http.Request) *zap.Logger {
	return h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
}

// fail отвечает по классу ошибки: ошибки пользователя с текстом для него, остальные 500
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrNotConfirmed):
		status = http.StatusPreconditionRequired
	case errors.Is(err, registry.ErrNothingToExport):
		status = http.StatusNotFound
	case registry.IsUserError(err):
		status = http.StatusUnprocessableEntity
	default:
		h.log(r).Error("request failed", zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(registry.UserMessage(err)))
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(fmt.Sprintf("Invalid request: %v", err)))
}

// ListStudents GET /v1/students?q=
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.registry.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, Ok(students))
}

// AddStudent POST /v1/students
func (h *Handler) AddStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	student, err := h.registry.Add(r.Context(), req.Entry())
	h.metrics.ObserveAdd(metrics.SourceHTTP, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Ok(student))
}

// AddBulk POST /v1/students/bulk
func (h *Handler) AddBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	var (
		res pipeline.BatchResult
		err error
	)
	if len(req.Students) > 0 {
		res, err = h.registry.AddBatch(r.Context(), req.Entries())
	} else {
		res, err = h.registry.AddBulkText(r.Context(), req.Text)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.ObserveBatch(metrics.SourceHTTP, res)
	render.JSON(w, r, Ok(newBatchResponse(res, registry.BatchSummary(res))))
}

// Import POST /v1/students/import, multipart с полем file
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, fmt.Errorf("file: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, r, fmt.Errorf("read file: %w", err))
		return
	}

	res, err := h.registry.Import(r.Context(), bytes.NewReader(data))
	if err != nil {
		if registry.IsUserError(err) {
			h.metrics.ObserveImportFailure(err)
		}
		h.fail(w, r, err)
		return
	}
	h.metrics.ObserveBatch(metrics.SourceHTTP, res.Batch)
	out := newBatchResponse(res.Batch, registry.ImportSummary(res))
	out.Malformed = res.Malformed
	render.JSON(w, r, Ok(out))
}

// Export GET /v1/students/export.xlsx?title=
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := h.registry.Export(r.Context(), &buf, r.URL.Query().Get("title"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	name := xlsx.FileName(h.exportBase)
	w.Header().Set("Content-Type", xlsxMime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"students.xlsx\"; filename*=UTF-8''%s", url.PathEscape(name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Student-Count", strconv.Itoa(n))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log(r).Warn("write export", zap.Error(err))
	}
}

// DeleteStudent DELETE /v1/students/{code}?confirm=true
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	removed, err := h.registry.Delete(r.Context(), code, confirmed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !removed {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("لا يوجد طالب بهذا الكود."))
		return
	}
	h.metrics.ObserveDelete()
	render.JSON(w, r, Ok(map[string]string{"studentCode": code}))
}

// GetPrefix GET /v1/prefix
func (h *Handler) GetPrefix(w http.ResponseWriter, r *http.Request) {
	prefix, err := h.registry.Prefix(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, Ok(PrefixRequest{Prefix: prefix}))
}

// SetPrefix PUT /v1/prefix
func (h *Handler) SetPrefix(w http.ResponseWriter, r *http.Request) {
	var req PrefixRequest
	if err := render.Bind(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := h.registry.SetPrefix(r.Context(), req.Prefix); err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, Ok(req))
}
