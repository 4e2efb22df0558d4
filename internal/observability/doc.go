// Package observability builds the process logger.
//
// Every component receives the *zap.Logger created here by injection;
// nothing in the module logs through a global.
package observability
