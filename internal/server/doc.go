// Package server provides HTTP routing, middleware and handlers for the drivetune service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method patterns on an [http.ServeMux] and wraps the whole mux with its [Middleware] stack
// (last added executes first). [Logging], [CORS] and [Recover] are provided.
//
// # Endpoints
//
// [API] serves:
//
//	GET  /api/songs?fileId=&fileName=   resolved song record
//	GET  /api/files?q=                  audio file listing
//	GET  /api/files/{id}                file info with its stream URL
//	GET  /api/files/{id}/stream         range-aware byte stream (HEAD too)
//	GET  /api/lyrics/search?q=          lyrics search hits
//	GET  /api/lyrics?url=|id=           extracted lyrics for a page
//
// Errors are JSON objects of the form {"error": "..."} with the status chosen by [StatusFor].
//
// # OAuth
//
// [AuthHandler] runs the consent flow for a long-running server. [OAuthHandler] handles a
// single callback for the CLI login command and reports the outcome on a channel.
package server
