// Package updater downloads and applies smart-lock releases from the update
// folder.
//
// It compares local files against checksums from the remote manifest, downloads
// the artifacts of the selected role to a temporary directory, applies them
// atomically with go-update and restarts the role's executable. On the device
// the daemon is stopped with SIGTERM first so it leaves the door locked.
package updater
