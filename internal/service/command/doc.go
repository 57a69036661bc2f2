// Package command applies remote lock and unlock commands to the shared lock.
package command
