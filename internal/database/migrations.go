package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/codyseavey/cardprice/internal/models"
)

// renameLegacyKeyColumn moves cache_entries.key to cache_key. "key" collides
// with SQL keywords in hand-written queries. Runs before AutoMigrate so the
// primary key is not recreated empty.
func renameLegacyKeyColumn(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&models.CacheEntry{}) {
		return nil
	}
	if !m.HasColumn(&models.CacheEntry{}, "key") || m.HasColumn(&models.CacheEntry{}, "cache_key") {
		return nil
	}
	if err := m.RenameColumn(&models.CacheEntry{}, "key", "cache_key"); err != nil {
		return err
	}
	log.Println("Renamed cache_entries.key to cache_key")
	return nil
}

// RunMigrations runs data cleanups after schema changes.
func RunMigrations(db *gorm.DB) error {
	return purgeUnreadableEntries(db)
}

// purgeUnreadableEntries drops rows that can never be served: no payload or
// no namespace to sweep them by.
func purgeUnreadableEntries(db *gorm.DB) error {
	result := db.Where("payload IS NULL OR length(payload) = 0 OR namespace IS NULL OR namespace = ''").
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Removed %d unreadable cache entries", result.RowsAffected)
	}
	return nil
}
