//go:build !outlinedebug

package outline

const assertInvariants = false
