// Package jobs stores the local history of submitted OCR jobs: what was
// uploaded, its last known status and where the converted output was saved.
package jobs
