// Package dbtest provides throwaway sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"tbnt/backend/internal/database"
	"tbnt/backend/internal/models"

	"gorm.io/gorm"
)

var seq atomic.Int64

// New returns a migrated in-memory sqlite database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.Connect("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given username and returns it.
func CreateUser(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Nickname: strings.ToUpper(username[:1]) + username[1:],
		Number:   100000 + seq.Add(1),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}
