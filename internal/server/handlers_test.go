package server

import (
	"testing"

	"skillbarter/internal/config"
	"skillbarter/internal/database"
	"skillbarter/internal/models"
	"skillbarter/internal/repository"
	"skillbarter/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
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

// newHandlerTestServer wires a Server directly against an in-memory database.
// The prometheus middleware is deliberately left unset: registering metrics
// per test would collide on the global registry.
func newHandlerTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	db := setupHandlerTestDB(t)

	s := &Server{
		config: &config.Config{
			JWTSecret:   "handler-test-secret",
			SignupBonus: 10,
		},
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		skillRepo:    repository.NewSkillRepository(db),
		proposalRepo: repository.NewProposalRepository(db),
		teamRepo:     repository.NewTeamRepository(db),
		convRepo:     repository.NewConversationRepository(db),
		notifRepo:    repository.NewNotificationRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
	s.ledgerService = service.NewLedgerService(db)
	s.proposalService = service.NewProposalService(db, s.proposalRepo, s.skillRepo, s.convRepo)
	s.teamService = service.NewTeamService(db, s.teamRepo, s.convRepo)
	s.userService = service.NewUserService(db, s.userRepo)

	return s, db
}

// authedApp returns a Fiber app whose requests run as the given user.
func authedApp(userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	return app
}

func createHandlerTestUser(t *testing.T, db *gorm.DB, username string, balance int) *models.User {
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

func createHandlerTestSkill(t *testing.T, db *gorm.DB, userID uint, title string, cost int) *models.Skill {
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

func handlerTestBalance(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return user.CreditBalance
}
