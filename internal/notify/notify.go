// Package notify shows desktop notifications for status changes.
package notify

import (
	"log"

	"github.com/gen2brain/beeep"
)

const appName = "Golem"

// Notifier posts desktop notifications when enabled
type Notifier struct {
	enabled bool
	// send and alert are beeep.Notify and beeep.Alert; tests replace them
	send  func(title, message, appIcon string) error
	alert func(title, message, appIcon string) error
}

// New creates a notifier. A disabled notifier only logs.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify, alert: beeep.Alert}
}

// Notify shows a notification, logging instead of failing when the desktop refuses it
func (n *Notifier) Notify(message string) {
	if n == nil || !n.enabled || message == "" {
		return
	}
	if err := n.send(appName, message, ""); err != nil {
		log.Printf("Notify: %v", err)
	}
}

// Alert shows an error notification
func (n *Notifier) Alert(message string) {
	if n == nil || !n.enabled || message == "" {
		return
	}
	if err := n.alert(appName, message, ""); err != nil {
		log.Printf("Notify: alert failed: %v", err)
	}
}
