package service

import (
	"context"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

// BlobStore is the opaque file storage behind attachment records.
type BlobStore interface {
	Store(data []byte, name string) (string, error)
	Resolve(uri string) (string, error)
	Remove(uri string) error
}

// Attachments manages uploaded files and their visibility.
type Attachments struct {
	attachments repository.AttachmentRepository
	blobs       BlobStore
	perms       *Perms
}

func NewAttachments(attachments repository.AttachmentRepository, blobs BlobStore, perms *Perms) *Attachments {
	return &Attachments{attachments: attachments, blobs: blobs, perms: perms}
}

// Upload stores the blob and records the attachment owned by the uploader.
func (s *Attachments) Upload(ctx context.Context, ownerID int64, data []byte, name, description string, public, showable bool) (*models.Attachment, error) {
	uri, err := s.blobs.Store(data, name)
	if err != nil {
		return nil, err
	}

	att, err := s.attachments.Create(ctx, &models.Attachment{
		OwnerID:     ownerID,
		URI:         uri,
		StoragePath: uri,
		Public:      public,
		Showable:    showable,
		Description: description,
	})
	if err != nil {
		// No record means no way to ever reach the blob; reclaim it.
		s.blobs.Remove(uri)
		return nil, err
	}
	return att, nil
}

// Resolve maps an attachment id to a readable file path, applying the
// visibility rules: public files are open to anyone, private ones to their
// owner and, when showable, to members of the whitelisted chat. A file the
// caller may not see resolves exactly like one that does not exist.
func (s *Attachments) Resolve(ctx context.Context, currentUser, attachmentID int64) (string, error) {
	att, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	if att == nil {
		return "", backend.ErrObjectNotFound
	}

	visible := att.Public || att.OwnerID == currentUser
	if !visible && att.Showable && att.ChatID != nil {
		member, err := s.perms.HasMember(ctx, currentUser, *att.ChatID)
		if err != nil {
			return "", err
		}
		visible = member
	}
	if !visible {
		return "", backend.ErrObjectNotFound
	}

	return s.blobs.Resolve(att.URI)
}

// Get returns the attachment record, with the same visibility rules as
// Resolve.
func (s *Attachments) Get(ctx context.Context, currentUser, attachmentID int64) (*models.Attachment, error) {
	if _, err := s.Resolve(ctx, currentUser, attachmentID); err != nil {
		return nil, err
	}
	return s.attachments.GetByID(ctx, attachmentID)
}
