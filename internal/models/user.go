package models

import "time"

// User is a crop-advisor account. Password accounts carry a PasswordHash;
// accounts created through Google sign-in carry a GoogleID instead.
type User struct {
	ID           string    `bson:"_id" json:"id" gorm:"primaryKey;size:36"`
	Name         string    `bson:"name" json:"name" gorm:"size:255"`
	Email        string    `bson:"email,omitempty" json:"email" gorm:"size:255;index:idx_users_email,unique,where:email <> ''"`
	City         string    `bson:"city,omitempty" json:"city" gorm:"size:255"`
	Region       string    `bson:"region,omitempty" json:"region" gorm:"size:255"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-" gorm:"size:255"`
	GoogleID     *string   `bson:"googleId,omitempty" json:"googleId,omitempty" gorm:"size:255;uniqueIndex:idx_users_google_id"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Summary is the public shape returned by the login endpoint.
type Summary struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	City   string `json:"city"`
	Region string `json:"region"`
}

func (u *User) Summary() Summary {
	return Summary{Name: u.Name, Email: u.Email, City: u.City, Region: u.Region}
}
