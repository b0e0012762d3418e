// Package clerk carries the Clerk-specific pieces of the sync pipeline:
// the inbound webhook template (svix header conventions) and the outbound
// management API client used to push internal ids back onto the
// provider-side profile.
package clerk
