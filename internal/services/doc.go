// Package services implements the clients for the remote providers drivetune depends on.
//
// # Token Manager
//
// [TokenManager] owns the Google OAuth2 credential. Access tokens are refreshed through
// the [oauth2.Config] token source when they expire or when a caller forces it after a
// 401. Concurrent refreshes share one request to the token endpoint via singleflight.
// The credential is persisted by a [TokenStore]; [FileTokenStore] keeps it as JSON.
//
// # Google Drive
//
// [DriveService] implements [FileStore]: file metadata, audio file listing, and raw
// media requests (alt=media) with an optional Range header. JSON calls retry once after
// a forced refresh when Drive answers 401.
//
// # Genius
//
// [GeniusService] implements [LyricsSource]. Search goes through the bearer-token API
// under a rate limiter; lyrics pages are downloaded with browser-like headers and
// handed to the lyrics package for extraction.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthUnavailable] : no stored credential or no refresh token
//   - [shared.ErrRefreshFailed] : the token endpoint rejected a refresh
//   - [shared.ErrUpstreamAuthFailed] : still unauthorized after a refresh
//   - [shared.ErrAPIRequest] : transport failure
//   - [shared.UpstreamError] : any other non-2xx response, with its status
package services
