// File: utils/constants.go
package utils

import "time"

// NotifCachePrefix is the prefix used for Redis notification-enablement
// cache keys.
const NotifCachePrefix = "notif-enabled:"

// NotifCacheTTL is the time-to-live for notification-enablement cache
// entries (§4.9: "cached 5 min").
const NotifCacheTTL = 5 * time.Minute
