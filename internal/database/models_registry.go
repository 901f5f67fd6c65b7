package database

import "confessional/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.UserProfile{},
		&models.Confession{},
		&models.Comment{},
		&models.Vote{},
		&models.Counter{},
		&models.ModerationRecord{},
		&models.Setting{},
		&models.BlockedUser{},
		&models.Draft{},
		&models.Report{},
		&models.ChatRequest{},
	}
}
