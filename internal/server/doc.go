// Package server hosts the SSH listener that fronts the authentication
// coordinator and a small admin HTTP endpoint for health checks and
// operational cache resets. The SSH side deliberately does very little:
// keygate decides who may connect, it does not host sessions.
package server
