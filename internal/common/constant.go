package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// admin access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Client identifier used when no forwarding header is present.
const UnknownClientID = "unknown"

// Metadata key of the single-tenant version list.
const VersionsMetadataKey = "versions"

// TenantVersionsKey returns the version list key owned by userID.
func TenantVersionsKey(userID string) string {
	return VersionsMetadataKey + ":" + userID
}
