package service

import (
	"testing"

	"skillbarter/internal/database"
	"skillbarter/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, balance int) *models.User {
	t.Helper()
	user := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		Password:      "pw",
		CreditBalance: balance,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestSkill(t *testing.T, db *gorm.DB, userID uint, title string, cost int) *models.Skill {
	t.Helper()
	skill := &models.Skill{
		UserID:       userID,
		Title:        title,
		Kind:         models.SkillKindOffer,
		ExchangeCost: cost,
		Status:       models.SkillStatusActive,
	}
	if err := db.Create(skill).Error; err != nil {
		t.Fatalf("create skill %s: %v", title, err)
	}
	return skill
}

func userBalance(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return user.CreditBalance
}

func countOutboxEvents(t *testing.T, db *gorm.DB, eventType string, userID uint) int {
	t.Helper()
	var count int64
	q := db.Model(&models.OutboxEvent{}).Where("type = ?", eventType)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	return int(count)
}
