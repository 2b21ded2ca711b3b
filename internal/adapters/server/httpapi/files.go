package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
)

// multipartOverhead is the slack allowed above the upload limit for form boundaries and fields.
const multipartOverhead int64 = 1 << 20

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	taskID, err := requireQuery(r, "taskId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	attachments, err := h.svc.ListAttachments(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.AttachmentView, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, common.NewAttachmentView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

// handleUploadFile serves POST `/files/upload` with multipart fields `taskId` and `file`.
func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeErrorFrom(w, fmt.Errorf("upload: %w", app.ErrFileTooLarge))
			return
		}
		writeErrorFrom(w, fmt.Errorf("parse multipart form: %w", errors.Join(common.ErrInvalidRequest, err)))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	taskID := strings.TrimSpace(r.FormValue("taskId"))
	if taskID == "" {
		writeErrorFrom(w, fmt.Errorf("taskId is required: %w", common.ErrInvalidRequest))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorFrom(w, fmt.Errorf("file is required: %w", common.ErrInvalidRequest))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment, err := h.svc.UploadAttachment(r.Context(), app.UploadAttachmentInput{
		TaskID:      taskID,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewAttachmentView(attachment))
}

func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	attachment, body, err := h.svc.DownloadAttachment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAttachment(r.Context(), r.PathValue("id")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
