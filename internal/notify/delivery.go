// Package notify delivers one-time passcodes to users, either directly by
// email or through a message queue consumed by the worker.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Delivery is one passcode addressed to one user. It is also the JSON
// payload published on the OTP queue.
type Delivery struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sender delivers a passcode.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}

// Subject returns the email subject line for d.
func (d Delivery) Subject() string {
	return fmt.Sprintf("Your %s code", purposeLabel(d.Purpose))
}

// Body returns the plain-text email body for d, relative to now.
func (d Delivery) Body(now time.Time) string {
	minutes := int(d.ExpiresAt.Sub(now).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	name := strings.TrimSpace(d.FullName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s,\r\n\r\nYour OTP code for %s is %s. It is valid for %d minutes.\r\n\r\nIf you did not request this code, you can ignore this email.\r\n",
		name, purposeLabel(d.Purpose), d.Code, minutes,
	)
}

func purposeLabel(purpose string) string {
	switch purpose {
	case "LOGIN":
		return "login"
	case "PASSWORD_RESET":
		return "password reset"
	default:
		return strings.ToLower(strings.ReplaceAll(purpose, "_", " "))
	}
}
