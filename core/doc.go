// Package core holds the domain model and contracts shared by the
// identity-sync packages: the webhook event envelope, the normalized user
// record, the store and provider client surfaces, and the error taxonomy
// every boundary maps through.
package core
