package database

import (
	"testing"

	"tbnt/backend/internal/models"
)

func TestConnect_UnsupportedDriver(t *testing.T) {
	if _, err := Connect("oracle", "whatever"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	db, err := Connect("sqlite", "file:database_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for _, model := range []any{&models.User{}, &models.ChatMessage{}} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("table for %T was not created", model)
		}
	}
	if !db.Migrator().HasColumn(&models.ChatMessage{}, "recipient_id") {
		t.Error("chat_messages.recipient_id missing")
	}
}
