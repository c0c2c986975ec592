// Package mail delivers OTP codes and operator alerts by email.
//
// Two drivers exist: SMTP for real delivery and Log for local development.
// Both take the same plain-text Message and reject header injection before
// anything is sent.
package mail
