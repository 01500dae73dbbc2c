// Package classifier provides digit model backends: an ONNX Runtime session,
// a pure Go dense network read from a JSON weights file, and a client for
// servers speaking the v2 inference protocol. Any backend can be wrapped in a
// score cache.
package classifier
