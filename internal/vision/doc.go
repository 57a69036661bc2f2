// Package vision classifies visitor images with an OpenCV DNN model, such as
// a TensorFlow Lite image classifier exported for 224x224 RGB input.
package vision
