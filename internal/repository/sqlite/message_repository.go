package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Raimpz/simple-chat/internal/models"
)

type MessageRepository struct {
	db *gorm.DB
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	row := messageRow{
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = row.ID
	return nil
}

func (r *MessageRepository) Conversation(ctx context.Context, a, b int64, limit, offset int) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, models.Message{
			ID:          row.ID,
			SenderID:    row.SenderID,
			RecipientID: row.RecipientID,
			Content:     row.Content,
			CreatedAt:   row.CreatedAt,
		})
	}
	return messages, nil
}
