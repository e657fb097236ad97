package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the scheme prefix expected in AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// TokenSize is the number of random bytes behind refresh and reset token ids.
const TokenSize = 32

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72
