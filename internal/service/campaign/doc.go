// Package campaign sends one-off broadcasts.
//
// A broadcast resolves its audience from the requested segments, narrows it
// with optional targeting conditions and a topic preference, saves the
// campaign so every message can carry its id, then renders and sends per
// recipient in provider batches. The saved counts reflect what the provider
// accepted.
//
// The service layer depends on the Repository interface defined in
// repository.go and never imports net/http or database/sql directly.
package campaign
