// Package camera takes still pictures of the visitor with OpenCV.
package camera
