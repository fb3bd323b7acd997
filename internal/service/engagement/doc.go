// Package engagement verifies provider webhooks and turns them into
// suppression updates and campaign engagement events.
//
// Webhooks are signed the Svix way: an HMAC-SHA256 over "id.timestamp.body"
// keyed with the base64 part of a "whsec_" secret, sent as space-separated
// "v1,<base64>" tokens. Deliveries outside the freshness window are refused
// whatever their signature.
package engagement
