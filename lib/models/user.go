package models

import (
	"gorm.io/gorm"
)

// User holds the Basic auth credential for one server. Never created for the
// default public server.
type User struct {
	gorm.Model
	BaseURL  string `gorm:"unique"`
	Username string
	Password string
}

type Preference struct {
	gorm.Model
	Key   string `gorm:"unique"`
	Value string
}

// PrefDefaultBaseURL overrides the built-in subscribe-to server address.
const PrefDefaultBaseURL = "default_base_url"
