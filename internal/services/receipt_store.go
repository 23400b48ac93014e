package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ReceiptUpload is a payment receipt artifact supplied with a payment.
type ReceiptUpload struct {
	FileName string
	Data     []byte
}

// ReceiptStore persists receipt artifacts and returns a stable reference.
type ReceiptStore interface {
	Upload(ctx context.Context, receipt ReceiptUpload) (string, error)
	// Delete removes a stored receipt. Deleting a missing receipt is not an error.
	Delete(ctx context.Context, ref string) error
}

var allowedReceiptTypes = []string{"application/pdf", "image/png", "image/jpeg", "image/webp"}

// FileReceiptStore keeps receipts on a local or mounted volume, grouped by month.
type FileReceiptStore struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

func NewFileReceiptStore(root string, maxBytes int64) *FileReceiptStore {
	return &FileReceiptStore{root: root, maxBytes: maxBytes, now: time.Now}
}

// Upload validates the artifact and writes it. Validation problems are
// returned as ValidationError, I/O problems as plain errors.
func (s *FileReceiptStore) Upload(ctx context.Context, receipt ReceiptUpload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(receipt.Data) == 0 {
		return "", NewValidationError("receipt is empty")
	}
	if s.maxBytes > 0 && int64(len(receipt.Data)) > s.maxBytes {
		return "", NewValidationError("receipt exceeds %d bytes", s.maxBytes)
	}

	mtype := mimetype.Detect(receipt.Data)
	if !mimetype.EqualsAny(mtype.String(), allowedReceiptTypes...) {
		return "", NewValidationError("receipt type %s is not accepted", mtype.String())
	}

	ref := filepath.ToSlash(filepath.Join(
		s.now().UTC().Format("2006/01"),
		uuid.New().String()+mtype.Extension(),
	))
	path := filepath.Join(s.root, filepath.FromSlash(ref))

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create receipt directory: %w", err)
	}
	if err := os.WriteFile(path, receipt.Data, 0o640); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return "receipts/" + ref, nil
}

func (s *FileReceiptStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel := strings.TrimPrefix(ref, "receipts/")
	if rel == ref || rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return NewValidationError("invalid receipt reference %q", ref)
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}
