package database

import (
	"errors"
	"log"

	"minimall/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin creates the initial dashboard account if none exists. The
// password must be changed after first login.
func SeedAdmin(db *gorm.DB) {
	var existing models.User
	err := db.Where("role = ?", models.RoleAdmin).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[SEED] admin lookup failed: %v", err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[SEED] hashing admin password failed: %v", err)
		return
	}
	admin := &models.User{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		log.Printf("[SEED] creating admin failed: %v", err)
		return
	}
	log.Printf("[SEED] created default admin account, change the password")
}
