// Package dispatch routes verified identity events to the user store.
//
// Each handled event kind triggers exactly one store mutation; unhandled
// kinds are rejected without touching the store. Store failures,
// verification failures, and the unhandled-kind rejection stay
// distinguishable by status class.
package dispatch
