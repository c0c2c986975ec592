// Package otp generates numeric one-time codes.
//
// Codes are drawn uniformly with crypto/rand from the range of numbers that
// have exactly the configured number of digits, so a code never starts with 0.
package otp
