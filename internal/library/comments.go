package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/models"
)

// ListComments returns the comments of a media file ordered by playback offset
func (s *Store) ListComments(mediaID int64) []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Comment{}
	for _, c := range s.comments {
		if c.MediaID == mediaID {
			out = append(out, c)
		}
	}
	sortComments(out)
	return out
}

// AddComment attaches a comment to a media file. The nickname defaults to the actor
// of ctx. A missing media file returns nil, nil.
func (s *Store) AddComment(ctx context.Context, mediaID int64, in models.CommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, invalid("comment text cannot be empty")
	}
	if in.Time < 0 {
		return nil, invalid("comment time cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[mediaID]
	if !ok {
		return nil, nil
	}

	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = s.actor(ctx)
	}
	comment := models.Comment{
		ID:        uuid.NewString(),
		MediaID:   mediaID,
		Text:      text,
		Time:      in.Time,
		Nickname:  nickname,
		CreatedAt: s.now().UTC(),
	}

	next := m.Clone()
	next.Comments = append(next.Comments, comment)
	if err := s.saveMedia(next); err != nil {
		return nil, fmt.Errorf("persist media %d: %w", mediaID, err)
	}
	s.media[mediaID] = next
	s.rebuildIndices()

	s.record(ctx, auditlog.Record{
		Action:      models.ActionCommentAdd,
		TargetID:    fmt.Sprint(mediaID),
		TargetName:  next.FileName,
		Description: fmt.Sprintf("%s commented on %s", nickname, next.FileName),
		Details:     map[string]any{"commentId": comment.ID, "time": comment.Time},
	})
	s.emit(Change{Kind: ChangeCommentAdded, MediaID: mediaID, CommentID: comment.ID})
	return &comment, nil
}

// DeleteComment removes one comment from a media file
func (s *Store) DeleteComment(ctx context.Context, mediaID int64, commentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[mediaID]
	if !ok {
		return false, nil
	}

	next := m.Clone()
	kept := next.Comments[:0]
	var removed *models.Comment
	for _, c := range next.Comments {
		if c.ID == commentID {
			removed = &c
			continue
		}
		kept = append(kept, c)
	}
	if removed == nil {
		return false, nil
	}
	next.Comments = kept

	if err := s.saveMedia(next); err != nil {
		return false, fmt.Errorf("persist media %d: %w", mediaID, err)
	}
	s.media[mediaID] = next
	s.rebuildIndices()

	s.record(ctx, auditlog.Record{
		Action:      models.ActionCommentDelete,
		TargetID:    fmt.Sprint(mediaID),
		TargetName:  next.FileName,
		Description: fmt.Sprintf("Deleted a comment by %s on %s", removed.Nickname, next.FileName),
		Details:     map[string]any{"commentId": commentID},
	})
	s.emit(Change{Kind: ChangeCommentDeleted, MediaID: mediaID, CommentID: commentID})
	return true, nil
}
