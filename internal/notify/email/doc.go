// Package email sends visitor alerts with the captured picture attached over
// authenticated SMTP with mandatory STARTTLS.
package email
