// Package notify holds notifiers that do not need a transport.
package notify
