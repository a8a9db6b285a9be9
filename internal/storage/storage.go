package storage

import (
	"context"
	"errors"
	"fmt"

	"meethub/backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the durable store: room configuration (read-only here), chat history,
// recording files and flushed attendance.
type Storage interface {
	GetRoomByShortID(ctx context.Context, shortID string) (*models.Room, error)
	SaveMessage(ctx context.Context, msg *models.ChatHistory) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)
	// SaveRecordingFile inserts the file unless one with the same egress id exists.
	// It reports whether a row was created.
	SaveRecordingFile(ctx context.Context, file *models.File) (bool, error)
	SaveAttendance(ctx context.Context, sessions []*models.AttendanceSession) error
}

type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AutoMigrate creates or updates the tables owned by this service.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Room{},
		&models.File{},
		&models.ChatHistory{},
		&models.AttendanceSession{},
		&models.AttendanceRecord{},
	)
}

func (s *Service) GetRoomByShortID(ctx context.Context, shortID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("short_id = ?", shortID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gorm: find room by short id %q: %w", shortID, err)
	}
	return &room, nil
}

// SaveMessage stores a chat message; msg.ID and msg.CreatedAt are filled by GORM.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Error().Err(err).Str("module", "storage").Str("room_id", msg.RoomID).Msg("failed to save message")
		return fmt.Errorf("gorm: save message for room %s: %w", msg.RoomID, err)
	}
	return nil
}

// GetChatHistory returns the room's messages, oldest first.
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	if err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at asc").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("gorm: get chat history for room %s: %w", roomID, err)
	}
	return history, nil
}

func (s *Service) SaveRecordingFile(ctx context.Context, file *models.File) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "egress_id"}}, DoNothing: true}).
		Create(file)
	if res.Error != nil {
		return false, fmt.Errorf("gorm: save recording file (egress %s): %w", file.EgressID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveAttendance writes all sessions and their records in one transaction.
func (s *Service) SaveAttendance(ctx context.Context, sessions []*models.AttendanceSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, session := range sessions {
			if err := tx.Create(session).Error; err != nil {
				return fmt.Errorf("gorm: save attendance session for room %s: %w", session.RoomID, err)
			}
		}
		return nil
	})
}
