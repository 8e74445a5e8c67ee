// Package rotation coordinates an identity change for one tier.
//
// A rotation walks Idle → CooldownBlocked | Rotating → Verifying → Done,
// or ends in Failed when the rotation mechanism itself errors. The
// cooldown reservation taken before Rotating is never rolled back, so a
// failed or unverified rotation still consumes the tier's window.
//
// Verification is best effort. A rotation whose new address could not be
// observed is still Done; the Result carries Verified=false and the reason
// in VerificationErr, which matches ErrVerificationInconclusive.
package rotation
