// Package delivery renders messages and hands them to an email provider.
//
// Two modes exist. Single-step mode sends one message and then waits the
// fixed inter-send delay, whatever the outcome; the scheduler uses it for
// sequence steps. Batch mode splits a broadcast into provider-sized chunks
// and waits the same delay between chunks; a failed chunk counts every
// message in it as failed.
//
// Providers implement Sender, and BatchSender when they accept multi-message
// calls. The Resend and SES implementations live under internal/provider.
package delivery
