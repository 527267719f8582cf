package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/DioBrando1866/tekken-tournaments/models"
)

const archiveContentType = "application/json"

// BracketArchiver writes finished brackets to object storage.
type BracketArchiver struct {
	uploader FileUploader
}

func NewBracketArchiver(uploader FileUploader) *BracketArchiver {
	return &BracketArchiver{uploader: uploader}
}

// ArchiveKey is the object key of a tournament's final bracket.
func ArchiveKey(tournamentID int, bracketID string) string {
	return fmt.Sprintf("brackets/tournament_%d/%s.json", tournamentID, bracketID)
}

// Archive uploads snap as JSON and returns the stored object.
func (a *BracketArchiver) Archive(ctx context.Context, snap *models.BracketSnapshot) (*UploadResult, error) {
	if snap == nil || snap.Bracket == nil {
		return nil, fmt.Errorf("nothing to archive")
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket archive: %w", err)
	}
	key := ArchiveKey(snap.TournamentID, snap.Bracket.ID)
	return a.uploader.Upload(ctx, key, archiveContentType, bytes.NewReader(body))
}

// Discard removes an archive that could not be recorded.
func (a *BracketArchiver) Discard(ctx context.Context, key string) error {
	return a.uploader.Delete(ctx, key)
}

func (a *BracketArchiver) PublicURL(key string) string {
	return a.uploader.GetPublicURL(key)
}
