//go:build outlinedebug

package outline

// Built with -tags outlinedebug every mutation re-validates the document and
// panics on the first violation.
const assertInvariants = true
