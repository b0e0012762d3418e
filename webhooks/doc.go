// Package webhooks contains delivery verification and processing.
//
// The processor runs verify -> parse -> dispatch per delivery. Duplicate
// suppression is opt-in: without a ledger every verified delivery reaches
// the dispatcher, including redeliveries with a fresh message id.
package webhooks
