// Package lock contains the lock position model, the remote command format and
// Guard, the serializing wrapper every writer of the lock goes through.
//
// Both the presence monitor and the remote command handler move the lock. They
// share nothing but a Guard: it serializes Set calls and skips a repeated
// identical position, which makes concurrent writers safe and the last writer win.
package lock
