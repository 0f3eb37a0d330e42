// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into outgoing mail.
package queue

// ResetMailQueueName is the durable queue carrying password-reset mail
// requests from the API to the mail worker.
const ResetMailQueueName = "email.password_reset"

// PasswordResetMailEvent is published when a user requests a password
// reset.  It carries everything the mail worker needs to render and send
// the message without querying the primary database.  ResetURL embeds the
// plaintext token; it exists only in flight and in the user's inbox, the
// database stores the token's hash.
type PasswordResetMailEvent struct {
    Email       string `json:"email"`
    Name        string `json:"name"`
    ResetURL    string `json:"reset_url"`
    ExpiresAt   string `json:"expires_at"`
    RequestedAt string `json:"requested_at"`
}
