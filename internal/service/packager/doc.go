// Package packager prepares the update manifest consumed by the updater.
//
// It computes checksums for the smart-lock binaries and settings, wires
// role-to-files mappings and records the update folder in the settings that
// ship with the release. The resulting YAML is uploaded to the update folder.
package packager
