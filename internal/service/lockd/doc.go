// Package lockd runs the smart-lock daemon: it opens the hardware, connects
// the command channel and runs the presence monitor until the process is
// asked to stop, leaving the door locked on the way out.
package lockd
