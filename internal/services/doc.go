// Package services defines the [Source] and [Sink] adapter contracts and implements them for
// iCloud Photos (through an HTTP proxy), Google Drive and S3-compatible object storage.
//
// # Adapter Contracts
//
// A [Source] lists, describes and downloads items. A [Sink] creates a container and stores items.
// Both are authenticated with an [oauth2.Token] resolved by the secret store; for services that do not
// speak OAuth the token's AccessToken carries the opaque secret (an iCloud proxy session, or an S3
// "accessKeyID:secretAccessKey" pair).
//
// # iCloud Implementation
//
// [ICloudSource] talks to an HTTP proxy that wraps the iCloud Photos API. Requests go through
// [APIService], which sends the session token as a bearer token on each request.
//
// # Google Drive Implementation
//
// [DriveSink] uses the generated Drive v3 client. Tokens are served from a static token source:
// refreshing is the secret store's job, not the HTTP client's.
//
// # S3 Implementation
//
// [S3Sink] uses aws-sdk-go-v2 with static credentials. Containers are key prefixes.
//
// # Token Refresh
//
// [NewRefreshingSource] and [NewRefreshingSink] wrap any adapter: a call failing with
// [shared.ErrTokenExpired] triggers one forced refresh, the inner adapter is re-authenticated and the call
// is retried exactly once. Verification and CountItems have no error to inspect, so a false result or a
// zero count is taken as the rejection.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrTokenExpired] : the service rejected the token (HTTP 401 or equivalent)
//   - [shared.ErrInvalidCredentials] : the stored secret is malformed or was revoked
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrItemNotFound] : item ID not found at the source
package services
