package rediskey

import "fmt"

// Permission cache keys (global convention across services)
const (
	PermissionPrefix     = "perm"
	LicenseVersionPrefix = "perm:version"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildPermissionKey returns "perm:{licenseID}:{userID}:{version}". The
// version segment lets a license-level counter invalidate every cached user
// without scanning keys.
func BuildPermissionKey(licenseID, userID string, version int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", PermissionPrefix, licenseID, userID, version)
}

// BuildLicenseVersionKey returns "perm:version:{licenseID}".
func BuildLicenseVersionKey(licenseID string) string {
	return NamespaceKey(LicenseVersionPrefix, licenseID)
}
