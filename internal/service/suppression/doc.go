// Package suppression decides whether a person may receive mail and applies
// the state changes that make them ineligible.
//
// IsEligible is the single predicate consulted before every scheduled send,
// before every broadcast send, and when cancelling an in-flight enrollment.
// Suppression signals flow in from the public unsubscribe endpoint and the
// provider webhook (bounces, complaints, contact unsubscribes).
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression
