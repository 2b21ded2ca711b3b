package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hylla/nexus/internal/domain"
)

// UploadAttachmentInput holds input values for upload operations.
type UploadAttachmentInput struct {
	TaskID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadAttachment stores the bytes first and records metadata only after the store succeeds.
func (s *Service) UploadAttachment(ctx context.Context, in UploadAttachmentInput) (domain.Attachment, error) {
	caller, task, _, err := s.authorizeTask(ctx, in.TaskID, domain.ActionCreate)
	if err != nil {
		return domain.Attachment{}, err
	}
	if s.storage == nil {
		return domain.Attachment{}, fmt.Errorf("%w: file storage is not configured", ErrUnavailable)
	}
	name, err := domain.NormalizeFileName(in.FileName)
	if err != nil {
		return domain.Attachment{}, err
	}
	if in.Size < 0 {
		return domain.Attachment{}, domain.ErrInvalidFileSize
	}
	if in.Size > s.cfg.UploadMaxBytes {
		return domain.Attachment{}, ErrFileTooLarge
	}
	if in.Body == nil {
		return domain.Attachment{}, domain.ErrInvalidFileSize
	}

	locator, err := s.storage.Store(ctx, in.Body, name, task.ID, caller.Subject)
	if err != nil {
		return domain.Attachment{}, storageErr("store", err)
	}
	attachment, err := domain.NewAttachment(domain.AttachmentInput{
		ID:          s.idGen(),
		TaskID:      task.ID,
		UploaderID:  caller.UserID,
		FileName:    name,
		Locator:     locator,
		ContentType: in.ContentType,
		Size:        in.Size,
	}, s.clock())
	if err == nil {
		err = s.repo.CreateAttachment(ctx, attachment)
	}
	if err != nil {
		s.purgeBlobs(ctx, []blobRef{{locator: locator, owner: caller.Subject}})
		return domain.Attachment{}, err
	}
	return attachment, nil
}

// ListAttachments returns a task's attachments, newest first.
func (s *Service) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	if _, _, _, err := s.authorizeTask(ctx, taskID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListAttachments(ctx, taskID)
}

// DownloadAttachment returns attachment metadata with its bytes.
func (s *Service) DownloadAttachment(ctx context.Context, id string) (domain.Attachment, []byte, error) {
	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	if _, _, _, err := s.authorizeTask(ctx, attachment.TaskID, domain.ActionRead); err != nil {
		return domain.Attachment{}, nil, err
	}
	if s.storage == nil {
		return domain.Attachment{}, nil, fmt.Errorf("%w: file storage is not configured", ErrUnavailable)
	}
	body, err := s.storage.Fetch(ctx, attachment.Locator, s.ownerSubject(ctx, attachment.UploaderID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Attachment{}, nil, err
		}
		return domain.Attachment{}, nil, storageErr("fetch", err)
	}
	return attachment, body, nil
}

// DeleteAttachment removes the bytes best-effort, then always removes the metadata row.
func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if _, _, _, err := s.authorizeTask(ctx, attachment.TaskID, domain.ActionUpdateContent); err != nil {
		return err
	}
	s.purgeBlobs(ctx, []blobRef{{locator: attachment.Locator, owner: s.ownerSubject(ctx, attachment.UploaderID)}})
	return s.repo.DeleteAttachment(ctx, attachment.ID)
}

// blobRef locates one stored blob and the drive owner it lives under.
type blobRef struct {
	locator string
	owner   string
}

// attachmentsUnder collects blobs owned by a task subtree, or by the whole project
// when rootTaskID is empty. Lookup failures are logged and skipped.
func (s *Service) attachmentsUnder(ctx context.Context, projectID, rootTaskID string) []blobRef {
	if s.storage == nil {
		return nil
	}
	tasks, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		s.logger.Warn("list tasks for blob cleanup failed", "project_id", projectID, "err", err)
		return nil
	}
	targets := tasks
	if rootTaskID != "" {
		idx := domain.IndexTasks(tasks)
		targets = append([]domain.Task{idx[rootTaskID]}, idx.Descendants(rootTaskID)...)
	}
	owners := map[string]string{}
	out := make([]blobRef, 0)
	for _, task := range targets {
		attachments, err := s.repo.ListAttachments(ctx, task.ID)
		if err != nil {
			s.logger.Warn("list attachments for blob cleanup failed", "task_id", task.ID, "err", err)
			continue
		}
		for _, a := range attachments {
			owner, ok := owners[a.UploaderID]
			if !ok {
				owner = s.ownerSubject(ctx, a.UploaderID)
				owners[a.UploaderID] = owner
			}
			out = append(out, blobRef{locator: a.Locator, owner: owner})
		}
	}
	return out
}

// purgeBlobs deletes blobs best-effort; failures are logged and swallowed.
func (s *Service) purgeBlobs(ctx context.Context, blobs []blobRef) {
	if s.storage == nil {
		return
	}
	for _, blob := range blobs {
		if err := s.storage.Delete(ctx, blob.locator, blob.owner); err != nil {
			s.logger.Warn("delete stored file failed", "locator", blob.locator, "err", err)
		}
	}
}

// ownerSubject returns the external subject of a user, or "" when unknown.
func (s *Service) ownerSubject(ctx context.Context, userID string) string {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Subject
}

// storageErr classifies a collaborator failure, keeping validation errors intact.
func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
