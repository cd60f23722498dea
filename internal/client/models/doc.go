// Package models defines the client-side data models of DULO: the cached
// session and profile, OCR jobs and their local history, chats, and the
// theme preference.
package models
