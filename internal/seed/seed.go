// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"

	"skillbarter/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	SignupBonus int
	ShouldClean bool
}

var skillTopics = []string{
	"Guitar Basics", "Sourdough Baking", "Conversational Spanish", "Watercolor Painting",
	"Intro to Go", "Yoga for Beginners", "Bike Repair", "Photography Fundamentals",
	"Public Speaking", "Knitting", "Chess Strategy", "Home Brewing",
	"Resume Writing", "Gardening", "Salsa Dancing", "Podcast Editing",
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d users...", opts.NumUsers)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway")
		}
	}

	// One shared hash keeps seeding fast; every seeded account logs in with
	// "password123".
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	for i := 0; i < opts.NumUsers; i++ {
		username := strings.ToLower(gofakeit.Username())
		user := models.User{
			Username:      fmt.Sprintf("%s%d", username, i),
			Email:         fmt.Sprintf("%s%d@example.com", username, i),
			Password:      string(hash),
			Bio:           gofakeit.Sentence(12),
			CreditBalance: opts.SignupBonus,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		if opts.SignupBonus > 0 {
			entry := models.LedgerEntry{
				UserID:       user.ID,
				EntryType:    models.LedgerEntryCredit,
				Reason:       models.LedgerReasonGrant,
				Amount:       opts.SignupBonus,
				BalanceAfter: opts.SignupBonus,
				ReferenceID:  "signup",
			}
			if err := db.Create(&entry).Error; err != nil {
				return fmt.Errorf("create signup grant: %w", err)
			}
		}

		for j := 0; j < 1+rand.Intn(3); j++ {
			kind := models.SkillKindOffer
			if rand.Intn(4) == 0 {
				kind = models.SkillKindRequest
			}
			skill := models.Skill{
				UserID:       user.ID,
				Title:        skillTopics[rand.Intn(len(skillTopics))],
				Description:  gofakeit.Paragraph(1, 3, 10, " "),
				Kind:         kind,
				ExchangeCost: 1 + rand.Intn(8),
				Status:       models.SkillStatusActive,
			}
			if err := db.Create(&skill).Error; err != nil {
				return fmt.Errorf("create skill: %w", err)
			}
		}
	}

	log.Printf("Seeding complete: %d users created", opts.NumUsers)
	return nil
}

func clearData(db *gorm.DB) error {
	tables := []string{
		"outbox_events", "notifications", "ledger_entries", "user_badges",
		"proposal_confirmations", "proposal_archives", "proposals",
		"team_completion_confirmations", "team_memberships", "teams",
		"conversation_participants", "conversations",
		"user_devices", "skills", "users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
