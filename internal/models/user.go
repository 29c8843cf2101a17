package models

import "gorm.io/gorm"

// User is the directory entry the chat core reads profile fields from.
type User struct {
	gorm.Model
	Username string  `gorm:"size:255;uniqueIndex;not null"`
	Nickname string  `gorm:"size:255"`
	Avatar   *string `gorm:"size:512"`
	// ChatColor is empty until the first successful chat connection assigns one.
	ChatColor string `gorm:"size:7;not null;default:''"`
	// Number is the public identifier used for friend lookup.
	Number int64 `gorm:"index"`
}
