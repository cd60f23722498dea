// Package storage saves converted OCR output. LocalSink writes into the
// download directory; S3Sink copies each file into a bucket under
// dulo/<username>/<filename>. Multi fans one object out to several sinks.
package storage
